// Package semaphore provides counting-semaphore admission control.
//
// A semaphore bounds how many operations run at once. Callers take
// permits with Acquire (blocking, context-aware) or TryAcquire
// (non-blocking) and give them back with Release. Capacity can be
// resized at runtime; shrinking below current usage takes effect as
// permits are released.
//
// Waiters are served in FIFO order, so a burst of acquirers cannot
// starve an earlier one.
package semaphore

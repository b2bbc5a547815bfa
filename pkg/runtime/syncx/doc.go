// Package syncx provides the synchronization primitives the taskflow
// runtime is built from: a non-reentrant mutex, a writer-preferring
// reader/writer lock, a one-time initializer, and a completion counter.
//
// All blocking acquisitions have a Context-accepting variant so callers
// can bound waits with a cancellation scope. Misuse that would corrupt
// internal state (unlocking an unheld lock, completion counter
// underflow, Add racing a live Wait) fails loudly with a panic wrapping
// errors.ErrInvalidState rather than being silently tolerated.
package syncx

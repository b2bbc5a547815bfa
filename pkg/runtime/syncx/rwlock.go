package syncx

import (
	"context"
	"fmt"
	"sync"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// RWLock allows any number of concurrent readers or exactly one writer,
// never both.
//
// Fairness policy: writer preference. Once a writer is waiting, new
// readers queue behind it, so a writer is never starved by a continuous
// stream of readers. Between a writer release and queued readers, the
// next waiting writer goes first.
type RWLock struct {
	mu sync.Mutex

	readers      int
	writerActive bool

	readerQ []*rwWaiter
	writerQ []*rwWaiter
}

type rwWaiter struct {
	ready chan struct{}
}

// NewRWLock creates an unlocked reader/writer lock.
func NewRWLock() *RWLock {
	return &RWLock{}
}

// RLock acquires a read lock, blocking while a writer holds or awaits
// the lock.
func (rw *RWLock) RLock() {
	if w := rw.rlockSlow(); w != nil {
		<-w.ready
	}
}

// RLockContext acquires a read lock, giving up when ctx is cancelled.
func (rw *RWLock) RLockContext(ctx context.Context) error {
	w := rw.rlockSlow()
	if w == nil {
		return nil
	}
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if rw.abandonReader(w) {
			return ctx.Err()
		}
		// Lost the race: the lock was granted while we were cancelling.
		return nil
	}
}

// rlockSlow takes the read lock immediately if possible, otherwise
// returns the waiter to block on.
func (rw *RWLock) rlockSlow() *rwWaiter {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.writerActive && len(rw.writerQ) == 0 {
		rw.readers++
		return nil
	}
	w := &rwWaiter{ready: make(chan struct{})}
	rw.readerQ = append(rw.readerQ, w)
	return w
}

// RUnlock releases a read lock. Releasing an unheld read lock panics.
func (rw *RWLock) RUnlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.readers <= 0 {
		panic(fmt.Errorf("syncx: RUnlock of unlocked RWLock: %w", tferrors.ErrInvalidState))
	}
	rw.readers--
	if rw.readers == 0 {
		rw.grantLocked()
	}
}

// Lock acquires the write lock, blocking until all readers and any
// preceding writer release.
func (rw *RWLock) Lock() {
	if w := rw.lockSlow(); w != nil {
		<-w.ready
	}
}

// LockContext acquires the write lock, giving up when ctx is cancelled.
func (rw *RWLock) LockContext(ctx context.Context) error {
	w := rw.lockSlow()
	if w == nil {
		return nil
	}
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if rw.abandonWriter(w) {
			return ctx.Err()
		}
		return nil
	}
}

func (rw *RWLock) lockSlow() *rwWaiter {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.writerActive && rw.readers == 0 {
		rw.writerActive = true
		return nil
	}
	w := &rwWaiter{ready: make(chan struct{})}
	rw.writerQ = append(rw.writerQ, w)
	return w
}

// Unlock releases the write lock. Releasing an unheld write lock panics.
func (rw *RWLock) Unlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.writerActive {
		panic(fmt.Errorf("syncx: Unlock of unlocked RWLock: %w", tferrors.ErrInvalidState))
	}
	rw.writerActive = false
	rw.grantLocked()
}

// grantLocked hands the lock to the next waiting writer, or to all
// waiting readers if no writer is queued. Must be called with rw.mu held
// and the lock free.
func (rw *RWLock) grantLocked() {
	if rw.writerActive || rw.readers > 0 {
		return
	}
	if len(rw.writerQ) > 0 {
		next := rw.writerQ[0]
		rw.writerQ = rw.writerQ[1:]
		rw.writerActive = true
		close(next.ready)
		return
	}
	for _, r := range rw.readerQ {
		rw.readers++
		close(r.ready)
	}
	rw.readerQ = nil
}

// abandonReader removes a cancelled reader from the queue. It returns
// false if the waiter was already granted the lock.
func (rw *RWLock) abandonReader(w *rwWaiter) bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for i, cand := range rw.readerQ {
		if cand == w {
			rw.readerQ = append(rw.readerQ[:i], rw.readerQ[i+1:]...)
			return true
		}
	}
	return false
}

// abandonWriter removes a cancelled writer from the queue. It returns
// false if the waiter was already granted the lock; regrants in case the
// departing writer was the only thing blocking queued readers.
func (rw *RWLock) abandonWriter(w *rwWaiter) bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for i, cand := range rw.writerQ {
		if cand == w {
			rw.writerQ = append(rw.writerQ[:i], rw.writerQ[i+1:]...)
			rw.grantLocked()
			return true
		}
	}
	return false
}

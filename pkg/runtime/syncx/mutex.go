package syncx

import (
	"context"
	"fmt"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// Mutex is a mutual-exclusion lock built on a one-slot channel.
// The zero value is not usable; create one with NewMutex.
//
// Mutex is not reentrant: a second Lock by the holder deadlocks, the
// same contract as sync.Mutex.
type Mutex struct {
	slot chan struct{}
}

// NewMutex creates an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{slot: make(chan struct{}, 1)}
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	m.slot <- struct{}{}
}

// LockContext acquires the mutex, giving up when ctx is cancelled.
func (m *Mutex) LockContext(ctx context.Context) error {
	select {
	case m.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the mutex without blocking, reporting success.
func (m *Mutex) TryLock() bool {
	select {
	case m.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. Unlocking a mutex that is not held is a
// usage bug and panics.
func (m *Mutex) Unlock() {
	select {
	case <-m.slot:
	default:
		panic(fmt.Errorf("syncx: unlock of unlocked mutex: %w", tferrors.ErrInvalidState))
	}
}

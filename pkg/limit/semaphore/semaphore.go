package semaphore

import (
	"context"
	"fmt"
	"sync"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
)

// Semaphore bounds the number of concurrently running operations.
type Semaphore interface {
	// Acquire blocks until one permit is available or ctx is done.
	Acquire(ctx context.Context) error

	// AcquireN blocks until n permits are available or ctx is done.
	// The permits are granted atomically.
	AcquireN(ctx context.Context, n int) error

	// TryAcquire takes one permit without blocking. It reports whether
	// a permit was available.
	TryAcquire() bool

	// TryAcquireN takes n permits without blocking.
	TryAcquireN(n int) bool

	// Release returns one permit. It panics if more permits are
	// released than were acquired.
	Release()

	// ReleaseN returns n permits.
	ReleaseN(n int)

	// SetCapacity resizes the semaphore. Shrinking below current usage
	// takes effect as outstanding permits are released.
	SetCapacity(capacity int) error

	// Capacity returns the maximum number of permits.
	Capacity() int

	// Available returns the number of permits currently free.
	Available() int

	// InUse returns the number of permits currently held.
	InUse() int

	// Waiting returns the number of goroutines blocked in Acquire.
	Waiting() int
}

// Config holds configuration options for creating a semaphore.
type Config struct {
	// Capacity is the maximum number of permits. Must be positive.
	Capacity int
}

// waiter is one goroutine blocked in AcquireN.
type waiter struct {
	n      int
	ready  chan struct{}
	cancel <-chan struct{}
}

type semaphore struct {
	mu        sync.Mutex
	capacity  int
	available int
	inUse     int
	waiters   []*waiter
}

// New creates a semaphore with the given permit capacity.
func New(capacity int) (Semaphore, error) {
	return NewWithConfig(Config{Capacity: capacity})
}

// NewWithConfig creates a semaphore with the specified configuration.
func NewWithConfig(config Config) (Semaphore, error) {
	if err := validation.ValidatePositive("semaphore", "capacity", config.Capacity); err != nil {
		return nil, err
	}
	return &semaphore{
		capacity:  config.Capacity,
		available: config.Capacity,
	}, nil
}

func (s *semaphore) Acquire(ctx context.Context) error {
	return s.AcquireN(ctx, 1)
}

func (s *semaphore) AcquireN(ctx context.Context, n int) error {
	if err := validation.ValidatePositive("semaphore", "n", n); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if n > s.capacity {
		s.mu.Unlock()
		return tferrors.NewValidationError("semaphore", "n", n, "exceeds semaphore capacity").
			WithHint(fmt.Sprintf("capacity is %d", s.capacity))
	}

	// Fast path only when no one is queued ahead, keeping FIFO order.
	if len(s.waiters) == 0 && s.available >= n {
		s.available -= n
		s.inUse += n
		s.mu.Unlock()
		return nil
	}

	w := &waiter{n: n, ready: make(chan struct{}), cancel: ctx.Done()}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		s.abandon(w)
		// Permits may have been granted while cancellation raced in.
		select {
		case <-w.ready:
			return nil
		default:
		}
		return tferrors.NewOperationError("semaphore", "Acquire", ctx.Err())
	}
}

func (s *semaphore) TryAcquire() bool {
	return s.TryAcquireN(1)
}

func (s *semaphore) TryAcquireN(n int) bool {
	if n <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 || s.available < n {
		return false
	}
	s.available -= n
	s.inUse += n
	return true
}

func (s *semaphore) Release() {
	s.ReleaseN(1)
}

func (s *semaphore) ReleaseN(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.inUse {
		panic(fmt.Errorf("%w: semaphore released %d permits with %d in use", tferrors.ErrInvalidState, n, s.inUse))
	}
	s.inUse -= n
	s.available += n
	if s.available > s.capacity {
		// Capacity was shrunk while these permits were out.
		s.available = s.capacity
	}
	s.grantLocked()
}

func (s *semaphore) SetCapacity(capacity int) error {
	if err := validation.ValidatePositive("semaphore", "capacity", capacity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := capacity - s.capacity
	s.capacity = capacity
	if delta > 0 {
		s.available += delta
		s.grantLocked()
	} else {
		s.available += delta
		if s.available < 0 {
			s.available = 0
		}
	}
	return nil
}

func (s *semaphore) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func (s *semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

func (s *semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// grantLocked serves queued waiters in order while permits last.
// A large waiter at the head blocks smaller ones behind it, which is
// what keeps the queue starvation-free. Must be called with mu held.
func (s *semaphore) grantLocked() {
	for len(s.waiters) > 0 {
		w := s.waiters[0]

		select {
		case <-w.cancel:
			s.waiters = s.waiters[1:]
			continue
		default:
		}

		if s.available < w.n {
			return
		}
		s.available -= w.n
		s.inUse += w.n
		s.waiters = s.waiters[1:]
		close(w.ready)
	}
}

// abandon removes a cancelled waiter from the queue.
func (s *semaphore) abandon(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.waiters {
		if queued == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			// The head may have changed.
			s.grantLocked()
			return
		}
	}
}

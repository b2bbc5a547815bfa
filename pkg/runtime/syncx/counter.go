package syncx

import (
	"context"
	"fmt"
	"sync"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// CompletionCounter tracks a number of expected completions and lets
// callers block until all of them have happened. It is the close signal
// used by worker pools and fan-in relays: Add one per worker, Done on
// exit, Wait to know the whole group has quiesced.
//
// Contract: once Wait has begun and the counter has raced to zero,
// calling Add again is a usage bug and panics, since it can cause
// premature wake-ups for other waiters.
type CompletionCounter struct {
	mu      sync.Mutex
	count   int
	waiters []chan struct{}
}

// NewCompletionCounter creates a counter at zero.
func NewCompletionCounter() *CompletionCounter {
	return &CompletionCounter{}
}

// Add increments the expected-completions counter by n, which may be
// negative. A counter dropping below zero panics. Reusing the counter by
// Add while earlier waiters are still blocked panics.
func (c *CompletionCounter) Add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > 0 && len(c.waiters) > 0 {
		panic(fmt.Errorf("syncx: CompletionCounter.Add called concurrently with Wait: %w", tferrors.ErrInvalidState))
	}

	c.count += n
	if c.count < 0 {
		panic(fmt.Errorf("syncx: CompletionCounter underflow: %w", tferrors.ErrInvalidState))
	}
	if c.count == 0 {
		for _, w := range c.waiters {
			close(w)
		}
		c.waiters = nil
	}
}

// Done decrements the counter by one.
func (c *CompletionCounter) Done() {
	c.Add(-1)
}

// Count returns the current counter value.
func (c *CompletionCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Wait blocks until the counter reaches zero. A counter already at zero
// returns immediately.
func (c *CompletionCounter) Wait() {
	if w := c.waiter(); w != nil {
		<-w
	}
}

// WaitContext blocks until the counter reaches zero or ctx is cancelled.
func (c *CompletionCounter) WaitContext(ctx context.Context) error {
	w := c.waiter()
	if w == nil {
		return nil
	}
	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CompletionCounter) waiter() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		return nil
	}
	w := make(chan struct{})
	c.waiters = append(c.waiters, w)
	return w
}

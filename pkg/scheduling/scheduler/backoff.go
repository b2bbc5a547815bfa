package scheduler

import (
	"context"
	"time"

	"github.com/vnykmshr/taskflow/pkg/runtime/task"
	"github.com/vnykmshr/taskflow/pkg/scheduling/workerpool"
)

// Backoff configures retry behavior for WithBackoff.
type Backoff struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry. Each further
	// retry doubles the delay.
	InitialDelay time.Duration

	// MaxDelay caps the doubled delay. Zero means no cap.
	MaxDelay time.Duration
}

// WithBackoff wraps a handler with exponential-backoff retries. The
// handler's last error is returned once retries are exhausted, and the
// task context cancels the retry sleeps.
func WithBackoff(handler workerpool.Handler, b Backoff) workerpool.Handler {
	return func(ctx context.Context, t task.Task) (any, error) {
		var value any
		var lastErr error
		delay := b.InitialDelay

		for attempt := 0; attempt <= b.MaxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				delay *= 2
				if b.MaxDelay > 0 && delay > b.MaxDelay {
					delay = b.MaxDelay
				}
			}

			value, lastErr = handler(ctx, t)
			if lastErr == nil {
				return value, nil
			}
		}
		return nil, lastErr
	}
}

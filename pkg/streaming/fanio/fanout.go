package fanio

import (
	"context"

	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
)

// Worker transforms one fanned-out item.
type Worker[I, O any] func(ctx context.Context, input I) (O, error)

// Outcome pairs a worker's output with any error it returned, so a
// failing item is reported rather than silently dropped.
type Outcome[O any] struct {
	Value O
	Err   error
}

// FanOut starts workers goroutines that compete to drain in. Each item
// is received by exactly one worker, transformed with fn, and sent on
// that worker's own output channel. Every output channel closes once
// in is closed and drained and its worker has exited.
//
// Cancelling ctx stops the workers early; their outputs still close.
func FanOut[I, O any](ctx context.Context, in *channel.Channel[I], workers int, fn Worker[I, O]) ([]*channel.Channel[Outcome[O]], error) {
	if err := validation.ValidatePositive("fanio", "workers", workers); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("fanio", "input", in); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, validation.ValidateNotNil("fanio", "worker", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outs := make([]*channel.Channel[Outcome[O]], workers)
	for i := range outs {
		out := channel.New[Outcome[O]](1)
		outs[i] = out

		go func() {
			defer func() { _ = out.Close() }()
			for {
				item, ok, err := in.Receive(ctx)
				if err != nil || !ok {
					return
				}
				value, ferr := fn(ctx, item)
				if err := out.Send(ctx, Outcome[O]{Value: value, Err: ferr}); err != nil {
					return
				}
			}
		}()
	}
	return outs, nil
}

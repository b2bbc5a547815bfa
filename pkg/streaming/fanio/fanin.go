package fanio

import (
	"context"

	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/syncx"
)

// FanIn merges the input channels into a single output channel. One
// relay goroutine per input forwards items as they arrive; the merged
// channel closes only after every input has closed and drained, so
// N inputs carrying k items each yield exactly N*k merged items.
//
// Arrival order across inputs is unspecified. Items from the same
// input keep their relative order.
func FanIn[T any](ctx context.Context, ins ...*channel.Channel[T]) (*channel.Channel[T], error) {
	return fanIn(ctx, nil, ins)
}

// fanIn is the shared implementation. onForward, when set, is called
// once per item successfully delivered to the sink.
func fanIn[T any](ctx context.Context, onForward func(), ins []*channel.Channel[T]) (*channel.Channel[T], error) {
	if err := validation.ValidatePositive("fanio", "inputs", len(ins)); err != nil {
		return nil, err
	}
	for _, in := range ins {
		if in == nil {
			return nil, validation.ValidateNotNil("fanio", "input", nil)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sink := channel.New[T](len(ins))
	relays := syncx.NewCompletionCounter()
	relays.Add(len(ins))

	for _, in := range ins {
		go func(in *channel.Channel[T]) {
			defer relays.Done()
			for {
				item, ok, err := in.Receive(ctx)
				if err != nil || !ok {
					return
				}
				if err := sink.Send(ctx, item); err != nil {
					return
				}
				if onForward != nil {
					onForward()
				}
			}
		}(in)
	}

	// The sink must not close while any relay can still forward.
	go func() {
		relays.Wait()
		_ = sink.Close()
	}()

	return sink, nil
}

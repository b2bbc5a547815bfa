package channel_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/scope"
)

func Example() {
	ctx := context.Background()
	ch := channel.New[string](2)

	_ = ch.Send(ctx, "first")
	_ = ch.Send(ctx, "second")
	_ = ch.Close()

	for {
		v, ok, err := ch.Receive(ctx)
		if err != nil || !ok {
			break
		}
		fmt.Println(v)
	}
	// Output:
	// first
	// second
}

func Example_rendezvous() {
	// Capacity 0: every send waits for a receiver.
	ch := channel.New[int](0)
	ctx := context.Background()

	go func() {
		_ = ch.Send(ctx, 42)
	}()

	v, _, _ := ch.Receive(ctx)
	fmt.Println(v)
	// Output: 42
}

func ExampleChannel_Send_cancellation() {
	// A cancelled scope unblocks a send into a full channel.
	ch := channel.New[int](1)
	_ = ch.Send(context.Background(), 1)

	s := scope.New(nil)
	s.Cancel()

	err := ch.Send(s, 2)
	fmt.Println(err != nil)
	// Output: true
}

package pipeline_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnykmshr/taskflow/pkg/scheduling/pipeline"
)

func Example() {
	p, err := pipeline.New(
		pipeline.NewStage("trim", func(_ context.Context, v any) (any, error) {
			return strings.TrimSpace(v.(string)), nil
		}),
		pipeline.NewStage("upper", func(_ context.Context, v any) (any, error) {
			return strings.ToUpper(v.(string)), nil
		}),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	source, _ := pipeline.Source(ctx, "  hello ", " pipeline  ")

	items, _ := pipeline.Collect(ctx, p.Run(ctx, source))
	for _, it := range items {
		fmt.Println(it.Value)
	}
	// Output:
	// HELLO
	// PIPELINE
}

func ExampleApply() {
	p, err := pipeline.New(
		pipeline.Apply("square", func(_ context.Context, n int) (int, error) {
			return n * n, nil
		}),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	source, _ := pipeline.Source(ctx, 7)

	items, _ := pipeline.Collect(ctx, p.Run(ctx, source))
	fmt.Println(items[0].Value)
	// Output: 49
}

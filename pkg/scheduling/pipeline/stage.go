package pipeline

import (
	"context"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
)

// Transform processes one item value and returns its replacement.
type Transform func(ctx context.Context, input any) (any, error)

// Stage is one processing step in a pipeline.
type Stage struct {
	// Name identifies the stage in errors, stats, and callbacks.
	Name string

	// Concurrency is the number of workers the stage runs. Must be at
	// least 1. With more than one worker the stage may reorder items.
	Concurrency int

	// Transform processes each item passing through the stage.
	Transform Transform
}

// NewStage creates a single-worker stage, which preserves item order.
func NewStage(name string, fn Transform) Stage {
	return Stage{Name: name, Concurrency: 1, Transform: fn}
}

// NewParallelStage creates a stage running concurrency workers.
func NewParallelStage(name string, concurrency int, fn Transform) Stage {
	return Stage{Name: name, Concurrency: concurrency, Transform: fn}
}

func (s Stage) validate() error {
	if err := validation.ValidateNotEmpty("pipeline", "stage.name", s.Name); err != nil {
		return err
	}
	if err := validation.ValidatePositive("pipeline", "stage.concurrency", s.Concurrency); err != nil {
		return err
	}
	if s.Transform == nil {
		return validation.ValidateNotNil("pipeline", "stage.transform", nil)
	}
	return nil
}

// Apply adapts a typed function into a single-worker Stage. The stage
// fails items whose value is not an I.
func Apply[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) Stage {
	return NewStage(name, func(ctx context.Context, input any) (any, error) {
		typed, ok := input.(I)
		if !ok {
			return nil, tferrors.NewValidationError("pipeline", "input", input, "unexpected item type").
				WithHint("stage " + name + " received a value of the wrong type")
		}
		return fn(ctx, typed)
	})
}

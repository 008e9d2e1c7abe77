// Package pipeline holds the data that flows between recording components and
// the generic stage abstraction used to compose multi-step operations.
package pipeline

import (
	"context"
)

// Stage represents one step of a multi-step operation.
// Each stage takes an input and produces an output.
type Stage[In, Out any] interface {
	// Execute runs the stage with the given input and returns the output.
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc is a function adapter for Stage interface.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

// Execute implements Stage interface.
func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}

// Chain runs first and feeds its output to second.
func Chain[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return StageFunc[A, C](func(ctx context.Context, input A) (C, error) {
		mid, err := first.Execute(ctx, input)
		if err != nil {
			var zero C
			return zero, err
		}
		return second.Execute(ctx, mid)
	})
}

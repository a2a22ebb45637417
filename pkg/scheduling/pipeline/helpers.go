package pipeline

import (
	"context"
	"fmt"
	"reflect"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
)

// Items converts a typed slice into a pipeline input collection.
func Items[T any](values []T) []any {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return items
}

// Collect converts a pipeline output collection into a typed slice. An item
// of any other type is reported as a TypeMismatchError.
func Collect[T any](items []any) ([]T, error) {
	if items == nil {
		return nil, nil
	}

	out := make([]T, len(items))
	for i, item := range items {
		v, ok := item.(T)
		if !ok {
			if item == nil && nillable(reflect.TypeFor[T]()) {
				continue
			}
			return nil, &gferrors.TypeMismatchError{
				Stage: "output",
				Item:  i,
				Want:  reflect.TypeFor[T]().String(),
				Got:   fmt.Sprintf("%T", item),
			}
		}
		out[i] = v
	}
	return out, nil
}

// Run executes stages over a typed input and converts the output to Out.
func Run[In, Out any](ctx context.Context, e *Executor, stages []Stage, input []In) ([]Out, error) {
	result, err := e.Run(ctx, stages, Items(input))
	if err != nil {
		return nil, err
	}
	return Collect[Out](result.Output)
}

// Pipeline is a reusable stage list bound to an executor.
type Pipeline struct {
	executor *Executor
	stages   []Stage
}

// NewPipeline creates an empty pipeline running on e. A nil executor uses New().
func NewPipeline(e *Executor) *Pipeline {
	if e == nil {
		e = New()
	}
	return &Pipeline{executor: e}
}

// Then appends stages and returns the pipeline for chaining.
func (p *Pipeline) Then(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Stages returns a copy of the stage list.
func (p *Pipeline) Stages() []Stage {
	stages := make([]Stage, len(p.stages))
	copy(stages, p.stages)
	return stages
}

// Run executes the pipeline over input.
func (p *Pipeline) Run(ctx context.Context, input []any) (*Result, error) {
	return p.executor.Run(ctx, p.Stages(), input)
}

// RunAsync executes the pipeline in the background.
func (p *Pipeline) RunAsync(ctx context.Context, input []any) <-chan *Result {
	return p.executor.RunAsync(ctx, p.Stages(), input)
}

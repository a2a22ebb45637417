package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/outcome"
	"github.com/vnykmshr/pipex/pkg/strategy"
)

// StageKind selects how a stage's items are executed.
type StageKind int

const (
	// Sync runs items one at a time on the executor's goroutine.
	Sync StageKind = iota
	// AsyncUnbounded runs every item concurrently.
	AsyncUnbounded
	// AsyncWindowed keeps at most Concurrency items in flight.
	AsyncWindowed
	// ParallelPool runs items on Concurrency pooled workers.
	ParallelPool
	// AsyncAutoFilter runs items concurrently and keeps only successes,
	// without consulting the strategy registry.
	AsyncAutoFilter
)

func (k StageKind) String() string {
	switch k {
	case Sync:
		return "sync"
	case AsyncUnbounded:
		return "async"
	case AsyncWindowed:
		return "windowed"
	case ParallelPool:
		return "parallel"
	case AsyncAutoFilter:
		return "autofilter"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Stage describes one pipeline step. Build stages with Map, Try or
// TryOutcome; the builder methods return modified copies.
type Stage struct {
	// Name identifies the stage in logs, metrics and registry lookups.
	Name string

	Kind StageKind

	// Concurrency is the window size for AsyncWindowed and AsyncAutoFilter
	// stages and the worker count for ParallelPool stages. Zero selects the
	// executor default.
	Concurrency int

	// Fallible stages produce outcomes that pass through a strategy.
	Fallible bool

	// Strategy, StrategyName and StrategyKey select the strategy of a
	// fallible stage, in that order of precedence.
	Strategy     strategy.Strategy
	StrategyName string
	StrategyKey  strategy.Key

	// InType is the item type the transformation accepts. SuccessType and
	// FailureType describe its result; FailureType is nil for infallible stages.
	InType      reflect.Type
	SuccessType reflect.Type
	FailureType reflect.Type

	transform func(ctx context.Context, index int, item any) (any, error)
	recover   func(index int, recovered any) (any, bool)
}

// Map creates an infallible stage. A panic in fn is a defect that aborts the run.
func Map[I, O any](name string, fn func(ctx context.Context, in I) O) Stage {
	return Stage{
		Name:        name,
		Kind:        Sync,
		InType:      reflect.TypeFor[I](),
		SuccessType: reflect.TypeFor[O](),
		transform: func(ctx context.Context, index int, item any) (any, error) {
			in, err := assertItem[I](ctx, index, item)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in), nil
		},
	}
}

// Try creates a fallible stage from a function following the (value, error)
// convention. Errors and panics become Failure outcomes.
func Try[I, T any](name string, fn func(ctx context.Context, in I) (T, error)) Stage {
	return Stage{
		Name:        name,
		Kind:        Sync,
		Fallible:    true,
		InType:      reflect.TypeFor[I](),
		SuccessType: reflect.TypeFor[T](),
		FailureType: reflect.TypeFor[error](),
		transform: func(ctx context.Context, index int, item any) (any, error) {
			in, err := assertItem[I](ctx, index, item)
			if err != nil {
				return nil, err
			}
			return outcome.Of(fn(ctx, in)), nil
		},
		recover: func(index int, recovered any) (any, bool) {
			return outcome.Failure[T, error](&PanicError{Item: index, Recovered: recovered}), true
		},
	}
}

// TryOutcome creates a fallible stage whose function returns outcomes
// directly. A panic becomes a Failure only when E is error; otherwise it is
// a defect.
func TryOutcome[I, T, E any](name string, fn func(ctx context.Context, in I) outcome.Outcome[T, E]) Stage {
	return Stage{
		Name:        name,
		Kind:        Sync,
		Fallible:    true,
		InType:      reflect.TypeFor[I](),
		SuccessType: reflect.TypeFor[T](),
		FailureType: reflect.TypeFor[E](),
		transform: func(ctx context.Context, index int, item any) (any, error) {
			in, err := assertItem[I](ctx, index, item)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in), nil
		},
		recover: func(index int, recovered any) (any, bool) {
			e, ok := any(&PanicError{Item: index, Recovered: recovered}).(E)
			if !ok {
				return nil, false
			}
			return outcome.Failure[T](e), true
		},
	}
}

// Async returns a copy of s that runs every item concurrently.
func (s Stage) Async() Stage {
	s.Kind = AsyncUnbounded
	return s
}

// Windowed returns a copy of s with at most w items in flight. Zero uses the
// executor's default window.
func (s Stage) Windowed(w int) Stage {
	s.Kind = AsyncWindowed
	s.Concurrency = w
	return s
}

// Parallel returns a copy of s running on k pooled workers. Values <= 0 use
// the executor's default worker count.
func (s Stage) Parallel(k int) Stage {
	s.Kind = ParallelPool
	s.Concurrency = k
	return s
}

// AutoFilter returns a copy of s that runs concurrently and keeps only
// success values. Only fallible stages may auto-filter.
func (s Stage) AutoFilter() Stage {
	s.Kind = AsyncAutoFilter
	return s
}

// WithStrategy returns a copy of s that uses st directly.
func (s Stage) WithStrategy(st strategy.Strategy) Stage {
	s.Strategy = st
	return s
}

// WithStrategyName returns a copy of s that uses the built-in or registered
// strategy called name.
func (s Stage) WithStrategyName(name string) Stage {
	s.StrategyName = name
	return s
}

// WithStrategyKey returns a copy of s that uses the strategy registered under key.
func (s Stage) WithStrategyKey(key strategy.Key) Stage {
	s.StrategyKey = key
	return s
}

// displayName names stage i in errors when it has no Name.
func (s Stage) displayName(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return "#" + strconv.Itoa(i)
}

// PanicError is the failure value recorded when the transformation of a
// fallible stage panics.
type PanicError struct {
	Item      int
	Recovered any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("item %d panicked: %v", e.Item, e.Recovered)
}

// Unwrap exposes a panic value that is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Recovered.(error)
	return err
}

func assertItem[I any](ctx context.Context, index int, item any) (I, error) {
	if in, ok := item.(I); ok {
		return in, nil
	}

	var zero I
	t := reflect.TypeFor[I]()
	if item == nil && nillable(t) {
		return zero, nil
	}

	stage, _ := pctx.Stage(ctx)
	return zero, &gferrors.TypeMismatchError{
		Stage: stage,
		Item:  index,
		Want:  t.String(),
		Got:   fmt.Sprintf("%T", item),
	}
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

package strategy

import (
	"context"
	"fmt"
	"reflect"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/diagnostics"
	"github.com/vnykmshr/pipex/pkg/outcome"
)

// Built-in strategy names.
const (
	NameIgnore       = "Ignore"
	NameCollect      = "Collect"
	NameFailFast     = "FailFast"
	NameLogAndIgnore = "LogAndIgnore"
	NameFirstError   = "FirstError"
	NameAutoFilter   = "AutoFilter"
)

// Strategy reduces the ordered outcomes of one stage into the input of the
// next stage. Handle must not modify the slice it is given.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and diagnostic records.
	Name() string

	// Handle applies the strategy. Index i of outcomes is the outcome of
	// input item i.
	Handle(ctx context.Context, outcomes []outcome.Result) ([]any, error)
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, outcomes []outcome.Result) []any
}

func (s funcStrategy) Name() string { return s.name }

func (s funcStrategy) Handle(ctx context.Context, outcomes []outcome.Result) ([]any, error) {
	return s.fn(ctx, outcomes), nil
}

// Func creates a custom strategy over type-erased outcomes.
func Func(name string, fn func(ctx context.Context, outcomes []outcome.Result) []any) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type typedStrategy[T, E any] struct {
	name string
	fn   func(ctx context.Context, outcomes []outcome.Outcome[T, E]) []any
}

func (s typedStrategy[T, E]) Name() string { return s.name }

func (s typedStrategy[T, E]) Handle(ctx context.Context, outcomes []outcome.Result) ([]any, error) {
	typed := make([]outcome.Outcome[T, E], len(outcomes))
	for i, r := range outcomes {
		o, ok := r.(outcome.Outcome[T, E])
		if !ok {
			stage, _ := pctx.Stage(ctx)
			return nil, &gferrors.TypeMismatchError{
				Stage: stage,
				Item:  i,
				Want:  reflect.TypeOf(o).String(),
				Got:   fmt.Sprintf("%T", r),
			}
		}
		typed[i] = o
	}
	return s.fn(ctx, typed), nil
}

// Typed creates a custom strategy over outcomes of a known type. Outcomes of
// any other type make Handle fail with a TypeMismatchError.
func Typed[T, E any](name string, fn func(ctx context.Context, outcomes []outcome.Outcome[T, E]) []any) Strategy {
	return typedStrategy[T, E]{name: name, fn: fn}
}

// Ignore keeps success values, unwrapped, and drops failures.
func Ignore() Strategy {
	return Func(NameIgnore, keepSuccesses)
}

// AutoFilter has the same effect as Ignore. It is applied by AsyncAutoFilter
// stages without consulting a registry.
func AutoFilter() Strategy {
	return Func(NameAutoFilter, keepSuccesses)
}

// Collect keeps every outcome unchanged.
func Collect() Strategy {
	return Func(NameCollect, func(_ context.Context, outcomes []outcome.Result) []any {
		out := make([]any, len(outcomes))
		for i, r := range outcomes {
			out[i] = r
		}
		return out
	})
}

// FailFast keeps failure values, unwrapped, and drops successes.
func FailFast() Strategy {
	return Func(NameFailFast, func(_ context.Context, outcomes []outcome.Result) []any {
		out := make([]any, 0)
		for _, r := range outcomes {
			if !r.IsSuccess() {
				out = append(out, r.FailureValue())
			}
		}
		return out
	})
}

// FirstError keeps only the first failed outcome, or nothing when every
// item succeeded.
func FirstError() Strategy {
	return Func(NameFirstError, func(_ context.Context, outcomes []outcome.Result) []any {
		for _, r := range outcomes {
			if !r.IsSuccess() {
				return []any{r}
			}
		}
		return []any{}
	})
}

func keepSuccesses(_ context.Context, outcomes []outcome.Result) []any {
	out := make([]any, 0, len(outcomes))
	for _, r := range outcomes {
		if r.IsSuccess() {
			out = append(out, r.SuccessValue())
		}
	}
	return out
}

type logAndIgnore struct {
	sink    diagnostics.Sink
	onError func(error)
}

// LogAndIgnore behaves like Ignore and writes one record per dropped failure
// to sink. Sink errors are passed to onError, if set, and otherwise
// discarded; they never fail the stage.
func LogAndIgnore(sink diagnostics.Sink, onError func(error)) Strategy {
	if sink == nil {
		sink = diagnostics.Nop()
	}
	return &logAndIgnore{sink: sink, onError: onError}
}

func (s *logAndIgnore) Name() string { return NameLogAndIgnore }

func (s *logAndIgnore) Handle(ctx context.Context, outcomes []outcome.Result) ([]any, error) {
	out := make([]any, 0, len(outcomes))
	for i, r := range outcomes {
		if r.IsSuccess() {
			out = append(out, r.SuccessValue())
			continue
		}
		s.write(ctx, diagnostics.NewRecord(ctx, NameLogAndIgnore, i, r.FailureValue()))
	}
	return out, nil
}

func (s *logAndIgnore) write(ctx context.Context, rec diagnostics.Record) {
	defer func() {
		if r := recover(); r != nil && s.onError != nil {
			s.onError(fmt.Errorf("diagnostics sink panicked: %v", r))
		}
	}()
	if err := s.sink.WriteFailure(ctx, rec); err != nil && s.onError != nil {
		s.onError(err)
	}
}

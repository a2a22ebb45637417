package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/outcome"
	"github.com/vnykmshr/pipex/pkg/strategy"
)

func TestStageKindString(t *testing.T) {
	assert.Equal(t, "sync", Sync.String())
	assert.Equal(t, "async", AsyncUnbounded.String())
	assert.Equal(t, "windowed", AsyncWindowed.String())
	assert.Equal(t, "parallel", ParallelPool.String())
	assert.Equal(t, "autofilter", AsyncAutoFilter.String())
	assert.Equal(t, "kind(7)", StageKind(7).String())
}

func TestConstructorsDeclareTypes(t *testing.T) {
	m := Map("len", func(_ context.Context, s string) int { return len(s) })
	assert.Equal(t, Sync, m.Kind)
	assert.False(t, m.Fallible)
	assert.Equal(t, reflect.TypeFor[string](), m.InType)
	assert.Equal(t, reflect.TypeFor[int](), m.SuccessType)
	assert.Nil(t, m.FailureType)

	tr := Try("parse", func(_ context.Context, s string) (float64, error) { return 0, nil })
	assert.True(t, tr.Fallible)
	assert.Equal(t, reflect.TypeFor[float64](), tr.SuccessType)
	assert.Equal(t, reflect.TypeFor[error](), tr.FailureType)

	to := TryOutcome("evens", evens)
	assert.True(t, to.Fallible)
	assert.Equal(t, reflect.TypeFor[int](), to.SuccessType)
	assert.Equal(t, reflect.TypeFor[string](), to.FailureType)
}

func TestBuildersReturnCopies(t *testing.T) {
	base := Try("parse", func(_ context.Context, n int) (int, error) { return n, nil })

	windowed := base.Windowed(4)
	parallel := base.Parallel(2)
	async := base.Async()
	filtered := base.AutoFilter()
	named := base.WithStrategyName(strategy.NameCollect)
	keyed := base.WithStrategyKey(strategy.NameKey("k"))
	direct := base.WithStrategy(strategy.Ignore())

	assert.Equal(t, Sync, base.Kind)
	assert.Zero(t, base.Concurrency)
	assert.Empty(t, base.StrategyName)
	assert.True(t, base.StrategyKey.IsZero())
	assert.Nil(t, base.Strategy)

	assert.Equal(t, AsyncWindowed, windowed.Kind)
	assert.Equal(t, 4, windowed.Concurrency)
	assert.Equal(t, ParallelPool, parallel.Kind)
	assert.Equal(t, 2, parallel.Concurrency)
	assert.Equal(t, AsyncUnbounded, async.Kind)
	assert.Equal(t, AsyncAutoFilter, filtered.Kind)
	assert.Equal(t, strategy.NameCollect, named.StrategyName)
	assert.Equal(t, strategy.NameKey("k"), keyed.StrategyKey)
	assert.Equal(t, strategy.NameIgnore, direct.Strategy.Name())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "double", Map("double", double).displayName(3))
	assert.Equal(t, "#3", Map("", double).displayName(3))
}

func TestTryTransform(t *testing.T) {
	stage := Try("parse", func(_ context.Context, n int) (int, error) {
		if n < 0 {
			return 0, errors.New("negative")
		}
		return n * 10, nil
	})

	v, err := stage.transform(context.Background(), 0, 4)
	require.NoError(t, err)
	o, ok := v.(outcome.Outcome[int, error])
	require.True(t, ok)
	val, _ := o.Value()
	assert.Equal(t, 40, val)

	v, err = stage.transform(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.True(t, v.(outcome.Result).IsFailure())
}

func TestAssertItem(t *testing.T) {
	ctx := pctx.WithStage(context.Background(), "parse", 2)

	n, err := assertItem[int](ctx, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	p, err := assertItem[*int](ctx, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	var e error
	e, err = assertItem[error](ctx, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = assertItem[int](ctx, 3, "five")
	var mismatch *gferrors.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "parse", mismatch.Stage)
	assert.Equal(t, 3, mismatch.Item)
	assert.Equal(t, "int", mismatch.Want)
	assert.Equal(t, "string", mismatch.Got)

	_, err = assertItem[int](ctx, 0, nil)
	assert.ErrorIs(t, err, gferrors.ErrTypeMismatch)
}

func TestPanicError(t *testing.T) {
	cause := errors.New("division by zero")
	err := &PanicError{Item: 2, Recovered: cause}
	assert.Equal(t, "item 2 panicked: division by zero", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := &PanicError{Item: 0, Recovered: 42}
	assert.NoError(t, plain.Unwrap())
}

func TestItemsAndCollect(t *testing.T) {
	items := Items([]string{"a", "b"})
	assert.Equal(t, []any{"a", "b"}, items)

	out, err := Collect[string](items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	_, err = Collect[int](items)
	assert.ErrorIs(t, err, gferrors.ErrTypeMismatch)

	ptrs, err := Collect[*int]([]any{nil})
	require.NoError(t, err)
	assert.Equal(t, []*int{nil}, ptrs)

	none, err := Collect[int](nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPipelineBuilder(t *testing.T) {
	p := NewPipeline(nil).
		Then(Map("double", double)).
		Then(Map("inc", inc).Async(), TryOutcome("evens", evens).WithStrategyName(strategy.NameFailFast))

	stages := p.Stages()
	require.Len(t, stages, 3)
	stages[0] = Map("replaced", inc)
	assert.Equal(t, "double", p.Stages()[0].Name)

	result, err := p.Run(context.Background(), Items([]int{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []any{"odd 3", "odd 5"}, result.Output)

	async := <-p.RunAsync(context.Background(), Items([]int{4}))
	require.NoError(t, async.Error)
	assert.Equal(t, []any{"odd 9"}, async.Output)
}

func TestRunHelperReportsOutputMismatch(t *testing.T) {
	_, err := Run[int, string](context.Background(), New(), []Stage{Map("double", double)}, []int{1})
	assert.ErrorIs(t, err, gferrors.ErrTypeMismatch)
}

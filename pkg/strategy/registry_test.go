package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/diagnostics"
	"github.com/vnykmshr/pipex/pkg/metrics"
	"github.com/vnykmshr/pipex/pkg/outcome"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, TypeKey[int, error](), TypeKey[int, error]())
	assert.NotEqual(t, TypeKey[int, error](), TypeKey[int, string]())
	assert.NotEqual(t, NameKey("a"), NameKey("b"))
	assert.True(t, Key{}.IsZero())
	assert.False(t, NameKey("a").IsZero())
	assert.Equal(t, "name:a", NameKey("a").String())
	assert.Equal(t, "types:(int, error)", TypeKey[int, error]().String())
}

func TestRegistryRegisterResolve(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve(NameKey("custom"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gferrors.ErrUnregisteredStrategy))

	require.NoError(t, reg.Register(NameKey("custom"), Collect()))
	s, err := reg.Resolve(NameKey("custom"))
	require.NoError(t, err)
	assert.Equal(t, NameCollect, s.Name())

	// last writer wins
	require.NoError(t, reg.Register(NameKey("custom"), FailFast()))
	s, err = reg.Resolve(NameKey("custom"))
	require.NoError(t, err)
	assert.Equal(t, NameFailFast, s.Name())

	require.NoError(t, reg.Register(TypeKey[int, error](), Ignore()))
	s, err = reg.Resolve(TypeKey[int, error]())
	require.NoError(t, err)
	assert.Equal(t, NameIgnore, s.Name())

	assert.Equal(t, 2, reg.Len())
	assert.Len(t, reg.Keys(), 2)

	assert.True(t, reg.Unregister(NameKey("custom")))
	assert.False(t, reg.Unregister(NameKey("custom")))
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Key{}, Collect())
	assert.True(t, gferrors.IsValidationError(err))

	err = reg.Register(NameKey("x"), nil)
	assert.True(t, gferrors.IsValidationError(err))

	assert.Panics(t, func() { reg.MustRegister(NameKey("x"), nil) })
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{NameIgnore, NameCollect, NameFailFast, NameLogAndIgnore, NameFirstError, NameAutoFilter} {
		s, err := reg.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
		assert.True(t, IsBuiltin(name))
	}

	_, err := reg.Lookup("Missing")
	assert.True(t, errors.Is(err, gferrors.ErrUnregisteredStrategy))
	assert.False(t, IsBuiltin("Missing"))

	reg.MustRegister(NameKey("Mine"), Collect())
	s, err := reg.Lookup("Mine")
	require.NoError(t, err)
	assert.Equal(t, NameCollect, s.Name())
}

func TestRegistryLogAndIgnoreUsesSink(t *testing.T) {
	sink := diagnostics.NewMemorySink()
	reg := NewRegistryWithConfig(Config{Sink: sink})

	s, err := reg.Lookup(NameLogAndIgnore)
	require.NoError(t, err)
	_, err = s.Handle(context.Background(), []outcome.Result{
		outcome.Failure[int]("a"),
		outcome.Success[int, string](1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Len())

	other := diagnostics.NewMemorySink()
	reg.SetSink(other)
	s, _ = reg.Lookup(NameLogAndIgnore)
	_, _ = s.Handle(context.Background(), []outcome.Result{outcome.Failure[int]("b")})
	assert.Equal(t, 1, other.Len())
	assert.Equal(t, 1, sink.Len())
}

func TestRegistryCountsDiagnosticRecords(t *testing.T) {
	m := metrics.NewRegistry(prometheus.NewRegistry())
	sink := diagnostics.NewMemorySink()
	reg := NewRegistryWithConfig(Config{Sink: sink, Metrics: m})

	s, err := reg.Lookup(NameLogAndIgnore)
	require.NoError(t, err)
	_, err = s.Handle(context.Background(), []outcome.Result{
		outcome.Failure[int]("a"),
		outcome.Success[int, string](1),
		outcome.Failure[int]("b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, 2.0, promtest.ToFloat64(m.DiagnosticRecords.WithLabelValues("memory", "ok")))

	reg.SetSink(diagnostics.SinkFunc(func(context.Context, diagnostics.Record) error {
		return errors.New("unavailable")
	}))
	s, _ = reg.Lookup(NameLogAndIgnore)
	out, err := s.Handle(context.Background(), []outcome.Result{outcome.Failure[int]("c")})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.DiagnosticRecords.WithLabelValues("custom", "error")))
}

func TestRegistryConcurrentReads(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NameKey("shared"), Collect())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := reg.Resolve(NameKey("shared"))
			assert.NoError(t, err)
			assert.Equal(t, NameCollect, s.Name())
		}()
	}
	wg.Wait()
}

package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
	"github.com/vnykmshr/pipex/pkg/metrics"
)

func testContext() context.Context {
	ctx := pctx.WithRunID(context.Background(), "run-42")
	return pctx.WithStage(ctx, "parse", 1)
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(testContext(), "LogAndIgnore", 3, errors.New("bad input"))

	assert.Equal(t, "run-42", rec.RunID)
	assert.Equal(t, "parse", rec.Stage)
	assert.Equal(t, 1, rec.StageIndex)
	assert.Equal(t, 3, rec.Index)
	assert.Equal(t, "LogAndIgnore", rec.Strategy)
	assert.Equal(t, "bad input", rec.Message())
	assert.False(t, rec.Time.IsZero())

	rec = NewRecord(context.Background(), "LogAndIgnore", 0, 17)
	assert.Equal(t, "17", rec.Message())
	assert.Equal(t, -1, rec.StageIndex)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	rec := NewRecord(testContext(), "LogAndIgnore", 2, "odd input")
	require.NoError(t, sink.WriteFailure(context.Background(), rec))

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "pipeline error (ignored)", event["message"])
	assert.Equal(t, "run-42", event["run_id"])
	assert.Equal(t, "parse", event["stage"])
	assert.Equal(t, float64(2), event["item"])
	assert.Equal(t, "odd input", event["failure"])
}

func TestLogSinkWithLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf)).WithLevel(zerolog.ErrorLevel)

	require.NoError(t, sink.WriteFailure(context.Background(), Record{Failure: "x"}))
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := testContext()

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.WriteFailure(ctx, NewRecord(ctx, "LogAndIgnore", i, i)))
	}

	records := sink.Records()
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i, rec.Index)
	}

	sink.Reset()
	assert.Equal(t, 0, sink.Len())
}

func TestMulti(t *testing.T) {
	first := NewMemorySink()
	second := NewMemorySink()
	failing := SinkFunc(func(context.Context, Record) error {
		return errors.New("sink down")
	})

	sink := Multi(first, nil, failing, second)
	err := sink.WriteFailure(context.Background(), Record{Index: 1})

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len(), "later sinks still receive the record")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop().WriteFailure(context.Background(), Record{}))
}

func TestMetricsSink(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	failing := SinkFunc(func(context.Context, Record) error { return errors.New("down") })

	mem := WithMetrics(NewMemorySink(), "", reg)
	require.NoError(t, mem.WriteFailure(context.Background(), Record{Index: 0}))
	require.NoError(t, mem.WriteFailure(context.Background(), Record{Index: 1}))

	bad := WithMetrics(failing, "stream", reg)
	assert.Error(t, bad.WriteFailure(context.Background(), Record{}))

	assert.Equal(t, 2.0, promtest.ToFloat64(reg.DiagnosticRecords.WithLabelValues("memory", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.DiagnosticRecords.WithLabelValues("stream", "error")))
	assert.Equal(t, 2, mem.Unwrap().(*MemorySink).Len())
}

func TestKind(t *testing.T) {
	tests := []struct {
		sink Sink
		want string
	}{
		{NewLogSink(zerolog.Nop()), "log"},
		{NewMemorySink(), "memory"},
		{Multi(Nop(), Nop()), "multi"},
		{Nop(), "nop"},
		{SinkFunc(func(context.Context, Record) error { return nil }), "custom"},
		{WithMetrics(Nop(), "audit", metrics.NewRegistry(prometheus.NewRegistry())), "audit"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.sink))
	}
}

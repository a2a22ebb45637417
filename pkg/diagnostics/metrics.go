package diagnostics

import (
	"context"

	"github.com/vnykmshr/pipex/pkg/metrics"
)

// MetricsSink wraps a Sink and counts written records by sink name and
// write status.
type MetricsSink struct {
	sink     Sink
	name     string
	registry *metrics.Registry
}

// WithMetrics instruments sink. An empty name is derived from the sink type,
// see Kind. A nil registry reports to metrics.DefaultRegistry.
func WithMetrics(sink Sink, name string, registry *metrics.Registry) *MetricsSink {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	if name == "" {
		name = Kind(sink)
	}
	return &MetricsSink{sink: sink, name: name, registry: registry}
}

// WriteFailure forwards rec and records the outcome of the write.
func (ms *MetricsSink) WriteFailure(ctx context.Context, rec Record) error {
	err := ms.sink.WriteFailure(ctx, rec)
	status := "ok"
	if err != nil {
		status = "error"
	}
	ms.registry.DiagnosticRecords.WithLabelValues(ms.name, status).Inc()
	return err
}

// Unwrap returns the instrumented sink.
func (ms *MetricsSink) Unwrap() Sink {
	return ms.sink
}

// Kind names the sink implementation for metric labels.
func Kind(sink Sink) string {
	switch s := sink.(type) {
	case *LogSink:
		return "log"
	case *RedisSink:
		return "redis"
	case *MemorySink:
		return "memory"
	case multiSink:
		return "multi"
	case nopSink:
		return "nop"
	case *MetricsSink:
		return s.name
	}
	return "custom"
}

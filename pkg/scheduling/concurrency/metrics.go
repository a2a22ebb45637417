package concurrency

import (
	"context"
	"time"

	"github.com/vnykmshr/pipex/pkg/metrics"
)

// MetricsLimiter wraps a concurrency Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	registry *metrics.Registry
}

// NewWithMetrics wraps limiter so that permits held, waiters and wait time
// are reported under name. A nil registry reports to metrics.DefaultRegistry.
func NewWithMetrics(limiter Limiter, name string, registry *metrics.Registry) *MetricsLimiter {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	ml := &MetricsLimiter{limiter: limiter, name: name, registry: registry}
	ml.updateMetrics()
	return ml
}

func (ml *MetricsLimiter) updateMetrics() {
	ml.registry.ConcurrencyActive.WithLabelValues(ml.name).Set(float64(ml.limiter.InUse()))
	ml.registry.ConcurrencyWaiting.WithLabelValues(ml.name).Set(float64(ml.limiter.Waiting()))
}

// Acquire attempts to acquire one permit without blocking.
func (ml *MetricsLimiter) Acquire() bool {
	return ml.AcquireN(1)
}

// AcquireN attempts to acquire n permits without blocking.
func (ml *MetricsLimiter) AcquireN(n int) bool {
	acquired := ml.limiter.AcquireN(n)
	ml.updateMetrics()
	return acquired
}

// Wait blocks until one permit is available.
func (ml *MetricsLimiter) Wait(ctx context.Context) error {
	return ml.WaitN(ctx, 1)
}

// WaitN blocks until n permits are available.
func (ml *MetricsLimiter) WaitN(ctx context.Context, n int) error {
	start := time.Now()
	ml.registry.ConcurrencyWaiting.WithLabelValues(ml.name).Inc()

	err := ml.limiter.WaitN(ctx, n)

	ml.registry.ConcurrencyWaitTime.WithLabelValues(ml.name).Observe(time.Since(start).Seconds())
	ml.updateMetrics()
	return err
}

// Release releases one permit back to the limiter.
func (ml *MetricsLimiter) Release() {
	ml.ReleaseN(1)
}

// ReleaseN releases n permits back to the limiter.
func (ml *MetricsLimiter) ReleaseN(n int) {
	ml.limiter.ReleaseN(n)
	ml.updateMetrics()
}

// SetCapacity changes the maximum number of concurrent operations allowed.
func (ml *MetricsLimiter) SetCapacity(capacity int) {
	ml.limiter.SetCapacity(capacity)
	ml.updateMetrics()
}

// Capacity returns the maximum number of concurrent operations allowed.
func (ml *MetricsLimiter) Capacity() int { return ml.limiter.Capacity() }

// Available returns the number of permits currently available.
func (ml *MetricsLimiter) Available() int { return ml.limiter.Available() }

// InUse returns the number of permits currently in use.
func (ml *MetricsLimiter) InUse() int { return ml.limiter.InUse() }

// Waiting returns the number of queued waiters.
func (ml *MetricsLimiter) Waiting() int { return ml.limiter.Waiting() }

package workerpool

import (
	"context"
	"time"

	"github.com/vnykmshr/pipex/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a pool from config whose size, activity, queue depth
// and task outcomes are reported under name. A nil registry reports to
// metrics.DefaultRegistry.
func NewWithMetrics(config Config, name string, registry *metrics.Registry) (*MetricsPool, error) {
	base, err := NewSafe(config)
	if err != nil {
		return nil, err
	}
	return WrapWithMetrics(base, name, registry), nil
}

// WrapWithMetrics instruments an existing pool.
func WrapWithMetrics(pool Pool, name string, registry *metrics.Registry) *MetricsPool {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	mp := &MetricsPool{pool: pool, name: name, registry: registry}
	mp.updateMetrics()
	return mp
}

func (mp *MetricsPool) updateMetrics() {
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithTimeout submits a task with a timeout for queuing.
func (mp *MetricsPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return mp.SubmitWithContext(ctx, task)
}

// SubmitWithContext submits a task with a context for cancellation.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	var wrapped Task
	if task != nil {
		wrapped = &metricsTask{original: task, pool: mp}
	}
	err := mp.pool.SubmitWithContext(ctx, wrapped)
	mp.updateMetrics()
	return err
}

type metricsTask struct {
	original Task
	pool     *MetricsPool
}

// Execute runs the original task and records its duration and outcome.
func (mt *metricsTask) Execute(ctx context.Context) (err error) {
	start := time.Now()
	mt.pool.updateMetrics()

	defer func() {
		r := recover()
		status := "success"
		switch {
		case r != nil:
			status = "panic"
		case err != nil:
			status = "error"
		}
		reg := mt.pool.registry
		reg.WorkerPoolTaskTime.WithLabelValues(mt.pool.name).Observe(time.Since(start).Seconds())
		reg.WorkerPoolTasks.WithLabelValues(mt.pool.name, status).Inc()
		if r != nil {
			panic(r)
		}
	}()

	return mt.original.Execute(ctx)
}

// Results returns a channel of task results. Result.Task is the wrapped
// task, not the one passed to Submit.
func (mp *MetricsPool) Results() <-chan Result {
	return mp.pool.Results()
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// ShutdownWithTimeout shuts down the pool with a timeout.
func (mp *MetricsPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	return mp.pool.ShutdownWithTimeout(timeout)
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	active := mp.pool.ActiveWorkers()
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(active))
	return active
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

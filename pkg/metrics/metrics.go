// Package metrics provides Prometheus instrumentation for pipex components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric unless Config.Namespace overrides it.
const DefaultNamespace = "pipex"

// Registry holds all metric instances for pipex components.
type Registry struct {
	// Executor Metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageItemsIn  *prometheus.CounterVec
	StageItemsOut *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	FatalErrors   *prometheus.CounterVec

	// Dispatch Metrics
	DispatchItems    *prometheus.CounterVec
	DispatchInFlight *prometheus.GaugeVec
	DispatchPanics   *prometheus.CounterVec

	// Concurrency Window Metrics
	ConcurrencyActive   *prometheus.GaugeVec
	ConcurrencyWaiting  *prometheus.GaugeVec
	ConcurrencyWaitTime *prometheus.HistogramVec

	// Worker Pool Metrics
	WorkerPoolSize     *prometheus.GaugeVec
	WorkerPoolActive   *prometheus.GaugeVec
	WorkerPoolQueued   *prometheus.GaugeVec
	WorkerPoolTasks    *prometheus.CounterVec
	WorkerPoolTaskTime *prometheus.HistogramVec

	// Scheduler Metrics
	JobRuns     *prometheus.CounterVec
	JobSkipped  *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Diagnostics Metrics
	DiagnosticRecords *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by pipex components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a metrics registry from config. A nil
// config.Registry registers with prometheus.DefaultRegisterer.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	b := builder{factory: promauto.With(reg), namespace: ns, labels: config.Labels}

	return &Registry{
		RunsTotal: b.counter("executor", "runs_total",
			"Total number of pipeline runs by final status", "status"),
		RunDuration: b.histogram("executor", "run_duration_seconds",
			"Wall time of pipeline runs", "status"),
		StageRuns: b.counter("executor", "stage_runs_total",
			"Total number of stage executions", "stage", "kind"),
		StageDuration: b.histogram("executor", "stage_duration_seconds",
			"Time spent executing one stage over all of its items", "stage", "kind"),
		StageItemsIn: b.counter("executor", "stage_items_in_total",
			"Items handed to a stage", "stage"),
		StageItemsOut: b.counter("executor", "stage_items_out_total",
			"Items produced by a stage after its strategy ran", "stage"),
		StageFailures: b.counter("executor", "stage_failures_total",
			"Per-item failures produced by fallible stages", "stage", "strategy"),
		FatalErrors: b.counter("executor", "fatal_errors_total",
			"Runs aborted by a fatal error", "stage", "reason"),

		DispatchItems: b.counter("dispatch", "items_total",
			"Items dispatched by concurrency mode", "mode"),
		DispatchInFlight: b.gauge("dispatch", "in_flight",
			"Items currently executing", "mode"),
		DispatchPanics: b.counter("dispatch", "panics_total",
			"Transformations that panicked", "mode"),

		ConcurrencyActive: b.gauge("concurrency", "active",
			"Number of permits currently held", "limiter_name"),
		ConcurrencyWaiting: b.gauge("concurrency", "waiting",
			"Number of operations waiting for a permit", "limiter_name"),
		ConcurrencyWaitTime: b.histogram("concurrency", "wait_duration_seconds",
			"Time spent waiting for a permit", "limiter_name"),

		WorkerPoolSize: b.gauge("workerpool", "size",
			"Current worker pool size", "pool_name"),
		WorkerPoolActive: b.gauge("workerpool", "active_workers",
			"Number of workers executing a task", "pool_name"),
		WorkerPoolQueued: b.gauge("workerpool", "queued_tasks",
			"Number of queued tasks", "pool_name"),
		WorkerPoolTasks: b.counter("workerpool", "tasks_total",
			"Tasks executed by outcome", "pool_name", "status"),
		WorkerPoolTaskTime: b.histogram("workerpool", "task_duration_seconds",
			"Time spent executing tasks", "pool_name"),

		JobRuns: b.counter("scheduler", "job_runs_total",
			"Scheduled pipeline runs by outcome", "scheduler_name", "job", "status"),
		JobSkipped: b.counter("scheduler", "job_skipped_total",
			"Scheduled runs skipped because the previous run was still active", "scheduler_name", "job"),
		JobDuration: b.histogram("scheduler", "job_duration_seconds",
			"Time spent in scheduled pipeline runs", "scheduler_name", "job"),

		DiagnosticRecords: b.counter("diagnostics", "records_total",
			"Failure records written to diagnostic sinks", "sink", "status"),
	}
}

type builder struct {
	factory   promauto.Factory
	namespace string
	labels    prometheus.Labels
}

func (b builder) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   b.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: b.labels,
	}, labels)
}

func (b builder) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   b.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: b.labels,
	}, labels)
}

func (b builder) histogram(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   b.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		Buckets:     prometheus.DefBuckets,
		ConstLabels: b.labels,
	}, labels)
}

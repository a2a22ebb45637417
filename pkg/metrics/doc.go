// Package metrics provides Prometheus instrumentation for pipex components.
//
// # Overview
//
// The metrics package instruments:
//   - Pipeline runs and stages (runs, stage durations, items in and out, failures)
//   - Dispatch modes (items per mode, in-flight items, recovered panics)
//   - Concurrency windows (permits held, waiters, wait time)
//   - Worker pools (pool size, active workers, queued and executed tasks)
//   - Scheduled pipeline jobs (runs, skipped runs, durations)
//   - Diagnostic sinks (records written and failed)
//
// # Quick Start
//
// Components accept a *Registry. Passing nil disables instrumentation:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//	exec := pipeline.NewWithConfig(pipeline.Config{Metrics: reg})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Available Metrics
//
//   - pipex_executor_runs_total{status}
//   - pipex_executor_run_duration_seconds{status}
//   - pipex_executor_stage_runs_total{stage,kind}
//   - pipex_executor_stage_duration_seconds{stage,kind}
//   - pipex_executor_stage_items_in_total{stage}
//   - pipex_executor_stage_items_out_total{stage}
//   - pipex_executor_stage_failures_total{stage,strategy}
//   - pipex_executor_fatal_errors_total{stage,reason}
//   - pipex_dispatch_items_total{mode}
//   - pipex_dispatch_in_flight{mode}
//   - pipex_dispatch_panics_total{mode}
//   - pipex_concurrency_active{limiter_name}
//   - pipex_concurrency_waiting{limiter_name}
//   - pipex_concurrency_wait_duration_seconds{limiter_name}
//   - pipex_workerpool_size{pool_name}
//   - pipex_workerpool_active_workers{pool_name}
//   - pipex_workerpool_queued_tasks{pool_name}
//   - pipex_workerpool_tasks_total{pool_name,status}
//   - pipex_workerpool_task_duration_seconds{pool_name}
//   - pipex_scheduler_job_runs_total{scheduler_name,job,status}
//   - pipex_scheduler_job_skipped_total{scheduler_name,job}
//   - pipex_scheduler_job_duration_seconds{scheduler_name,job}
//   - pipex_diagnostics_records_total{sink,status}
//
// # Configuration
//
//	config := metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "myapp",                        // Override default "pipex"
//		Labels:    prometheus.Labels{"env": "dev"}, // Constant labels
//	}
//	reg := metrics.FromConfig(config)
//
// Registering two registries with the same namespace on one Prometheus
// registerer panics, as with any duplicate Prometheus collector.
package metrics

/*
Package pipex runs ordered, multi-stage data pipelines where each stage
chooses its own execution strategy and fallible stages route failures
through pluggable error handling strategies.

Pipelines (pkg/scheduling/pipeline):
  - Sync, Async, Windowed and Parallel stage kinds with order preserved
  - fallible stages resolved against a strategy registry before any item runs
  - cancellation, timeouts, tracing and Prometheus metrics

Supporting packages:
  - outcome: the success/failure value carried by fallible stages
  - strategy: built-in and user-registered error handling strategies
  - diagnostics: failure record sinks (log, memory, Redis streams)
  - scheduling/dispatch: per-kind item dispatch
  - scheduling/concurrency: FIFO counting limiter backing windowed dispatch
  - scheduling/workerpool: fixed worker pool backing parallel dispatch
  - scheduling/scheduler: cron and interval driven pipeline jobs
  - config, logging, metrics: ambient wiring

Example usage:

	import (
		"github.com/vnykmshr/pipex/pkg/scheduling/pipeline"
		"github.com/vnykmshr/pipex/pkg/strategy"
	)

	stages := []pipeline.Stage{
		pipeline.Map("double", double).Async(),
		pipeline.Try("parse", parse).Windowed(5).WithStrategyName(strategy.NameIgnore),
	}
	result, err := pipeline.New().Run(ctx, stages, pipeline.Items(inputs))
*/
package pipex

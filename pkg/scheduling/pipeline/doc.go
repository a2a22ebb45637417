/*
Package pipeline runs an ordered list of stages over a collection of items.

Each stage transforms every item of its input collection and hands the
results to the next stage. Stages may run their items synchronously,
concurrently, under a bounded window, or on a fixed worker pool. Output order
always follows input order, whatever the execution mode.

# Quick Start

	exec := pipeline.New()

	stages := []pipeline.Stage{
		pipeline.Map("double", func(ctx context.Context, n int) int { return n * 2 }),
		pipeline.Map("square", func(ctx context.Context, n int) int { return n * n }).Async(),
	}

	result, err := exec.Run(ctx, stages, pipeline.Items([]int{1, 2, 3}))
	fmt.Println(result.Output) // [4 16 36]

Typed helper:

	out, err := pipeline.Run[int, int](ctx, exec, stages, []int{1, 2, 3})

# Stage Kinds

	pipeline.Map("f", f)               // Sync, one item at a time
	pipeline.Map("f", f).Async()       // AsyncUnbounded, one goroutine per item
	pipeline.Map("f", f).Windowed(3)   // AsyncWindowed, at most 3 in flight
	pipeline.Map("f", f).Parallel(4)   // ParallelPool, 4 workers
	pipeline.Try("f", g).AutoFilter()  // AsyncAutoFilter, keeps successes only

Windowed(0) and Parallel(0) use the executor defaults (DefaultWindow and
runtime.NumCPU()). A negative window is a configuration error.

# Fallible Stages

Try and TryOutcome build stages whose transformation can fail. Their
per-item outcomes pass through a strategy before the next stage runs:

	parse := pipeline.Try("parse", func(ctx context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	}).WithStrategyName(strategy.NameIgnore)

The strategy of a fallible stage is resolved before any of its items run,
in this order:

 1. the Strategy set with WithStrategy
 2. the built-in or registered name set with WithStrategyName
 3. the key set with WithStrategyKey
 4. a strategy registered under strategy.NameKey(stage name)
 5. a strategy registered under the stage's success and failure types

An unresolvable strategy aborts the run with errors.ErrUnregisteredStrategy.

# Error Handling

A run ends early, with a nil Output, when:

  - a stage descriptor is invalid (errors.IsConfigurationError)
  - an infallible transformation panics (errors.IsDefect)
  - an item has the wrong type for its stage (errors.ErrTypeMismatch)
  - the context is cancelled (errors.IsCancelled)

Panics in fallible stages become Failure outcomes carrying a *PanicError.

# Monitoring

	exec := pipeline.NewWithConfig(pipeline.Config{
		Registry: registry,
		Logger:   &logger,
		Metrics:  metrics.DefaultRegistry,
		OnStageComplete: func(r pipeline.StageResult) {
			log.Printf("%s: %d in, %d failed, %d out", r.Name, r.Items, r.Failures, r.Output)
		},
	})

	stats := exec.Stats()
	fmt.Printf("Runs: %d, failed: %d\n", stats.TotalRuns, stats.FailedRuns)

Runs and stages are traced with OpenTelemetry spans named pipeline.run and
pipeline.stage.

# Thread Safety

An Executor may run any number of pipelines concurrently. Stage values are
immutable and may be shared between runs.
*/
package pipeline

/*
Package scheduling groups the execution primitives behind pipex pipelines.

  - pipeline: stage definitions and the executor that folds them over a batch
  - dispatch: runs one stage over a batch in sync, unbounded, windowed or pool mode
  - concurrency: counting limiter that bounds windowed dispatch
  - workerpool: fixed pool of workers that backs pool dispatch
  - scheduler: cron and interval triggers that run pipelines as jobs

Dispatch:

Every mode writes results into index-addressed slots, so output order
always matches input order regardless of completion order:

	out, err := dispatch.Run(ctx, dispatch.Windowed(4), items, fn)

Scheduler:

	s := scheduler.NewWithConfig(scheduler.Config{Executor: exec})
	_ = s.ScheduleCron("nightly", "0 2 * * *", scheduler.Job{
		Source: load,
		Stages: stages,
		Sink:   store,
	})
	_ = s.Start()
	defer s.Stop(context.Background())

Each subpackage documents its own configuration and thread-safety rules.
*/
package scheduling

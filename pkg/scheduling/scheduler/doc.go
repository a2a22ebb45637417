// Package scheduler runs pipelines on cron schedules.
//
// A Job pairs a source of input items with a stage list and an optional sink
// for the result. The scheduler starts a run of the job at every activation of
// its schedule. A run that would overlap the previous run of the same job is
// skipped.
//
// Basic Usage:
//
//	s := scheduler.New()
//	defer s.Stop(context.Background())
//
//	job := scheduler.Job{
//		Source: func(ctx context.Context) ([]any, error) {
//			return loadPendingOrders(ctx)
//		},
//		Stages: []pipeline.Stage{
//			pipeline.Try("validate", validateOrder).WithStrategyName(strategy.NameLogAndIgnore),
//			pipeline.Map("price", priceOrder).Parallel(4),
//		},
//		Sink: func(ctx context.Context, r *pipeline.Result) error {
//			return publish(ctx, r.Output)
//		},
//	}
//
//	s.ScheduleCron("orders", "*/30 * * * * *", job) // every 30 seconds
//	s.ScheduleEvery("orders-fast", 5*time.Second, job)
//	s.Start()
//
// Cron Expressions:
//
// Five-field expressions, six-field expressions with a leading seconds field,
// and descriptors are accepted:
//
//	"0 */2 * * *"       every 2 hours
//	"30 14 * * 1-5"     2:30 PM on weekdays
//	"*/10 * * * * *"    every 10 seconds
//	"@daily"            every day at midnight
//	"@every 90s"        every 90 seconds
//	"CRON_TZ=UTC @daily" midnight UTC
//
// Use ValidateCronExpression and NextRuns to check an expression before
// scheduling it.
//
// Manual Runs:
//
// Trigger runs a job immediately on the calling goroutine and returns its
// result. It follows the same overlap rule, returning ErrJobRunning while a
// scheduled run is in progress.
//
// Configuration:
//
//	s := scheduler.NewWithConfig(scheduler.Config{
//		Name:     "orders",
//		Executor: pipeline.NewWithConfig(pipeline.Config{Metrics: metrics.DefaultRegistry}),
//		Location: time.UTC,
//		Logger:   &logger,
//		Metrics:  metrics.DefaultRegistry,
//		OnJobComplete: func(info scheduler.JobInfo, r *pipeline.Result, err error) {
//			if err != nil {
//				log.Printf("job %s failed: %v", info.Name, err)
//			}
//		},
//	})
//
// Shutdown:
//
// Stop prevents new runs and waits for running jobs. When its context expires
// first, the contexts of running jobs are cancelled:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	if err := s.Stop(ctx); err != nil {
//		log.Printf("jobs cancelled: %v", err)
//	}
//
// A stopped scheduler cannot be restarted.
package scheduler

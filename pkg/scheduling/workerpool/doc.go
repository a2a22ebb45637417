/*
Package workerpool provides a fixed-size pool of worker goroutines that pull
tasks from a shared queue.

The parallel dispatch mode of the pipeline executor runs each stage's items on
a pool of K workers. The package is also usable on its own.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer pool.Shutdown()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

	result := <-pool.Results()
	if result.Error != nil {
		log.Printf("Task failed: %v", result.Error)
	}

Results:

Every executed task produces a Result on the Results channel, which callers
must drain. Callers that record outcomes inside their tasks set
DiscardResults so workers never wait on the channel:

	pool, err := workerpool.NewSafe(workerpool.Config{
		WorkerCount:    runtime.NumCPU(),
		QueueSize:      64,
		DiscardResults: true,
	})

Shutdown:

Shutdown stops accepting tasks, lets queued tasks run and closes the returned
channel once every worker has exited. ShutdownWithTimeout additionally cancels
the context of running tasks and skips queued ones when the timeout elapses.

Panics:

A panicking task does not kill its worker. The panic is passed to
Config.PanicHandler when set, and otherwise reported as a *PanicError in the
task's Result.

Metrics:

NewWithMetrics and WrapWithMetrics report pool size, active workers, queue
depth, task durations and task outcomes through a metrics.Registry.
*/
package workerpool

/*
Package concurrency provides a counting semaphore that bounds how many
operations are in flight at once.

The windowed dispatch mode of the pipeline executor takes one permit per item
before launching it and releases the permit when the item finishes, so at most
Capacity transformations run at any instant.

Basic usage:

	limiter := concurrency.New(10)

	if err := limiter.Wait(ctx); err != nil {
		return err // context canceled
	}
	defer limiter.Release()

Waiters are served in arrival order. A waiter whose context is canceled leaves
the queue without consuming a permit.

Use NewSafe to receive a ValidationError for a non-positive capacity instead
of a panic, and NewWithMetrics to report permits held, queued waiters and
wait time to Prometheus.
*/
package concurrency

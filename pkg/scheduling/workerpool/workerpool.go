package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vnykmshr/pipex/pkg/common/errors"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithTimeout submits a task, giving up if it cannot be queued within timeout.
func (p *workerPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return p.enqueue(ctx, task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method. If the pool has a
// TaskTimeout configured, the effective deadline is the earlier of the two.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	return p.enqueue(ctx, task)
}

func (p *workerPool) enqueue(ctx context.Context, task Task) error {
	if task == nil {
		return errors.NewValidationError("workerpool", "task", nil, "cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.isShutdown {
		return fmt.Errorf("cannot submit task: %w", errors.ErrClosed)
	}

	// Pre-canceled contexts never reach the queue.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot submit task: %w", err)
	}

	select {
	case p.taskQueue <- taskWithContext{task: task, ctx: ctx}:
		p.totalSubmitted.Add(1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	}
}

// Results returns a channel of task results.
func (p *workerPool) Results() <-chan Result {
	return p.resultQueue
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		close(p.taskQueue)
		p.mu.Unlock()

		go func() {
			p.workerWg.Wait()
			p.abort()
			if !p.config.DiscardResults {
				close(p.resultQueue)
			}
			close(p.done)
		}()
	})
	return p.done
}

// ShutdownWithTimeout shuts down the pool, aborting outstanding work after timeout.
func (p *workerPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	done := p.Shutdown()
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			p.abort()
		}
	}()
	return done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// runWorker is the main loop for worker id. It exits once the task queue is
// closed and drained.
func (p *workerPool) runWorker(id int) {
	defer p.workerWg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(id)
	}

	for twc := range p.taskQueue {
		result := p.executeTask(id, twc)
		p.totalCompleted.Add(1)

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(id, result)
		}
		p.sendResult(result)
	}
}

func (p *workerPool) sendResult(result Result) {
	if p.config.DiscardResults {
		return
	}
	select {
	case p.resultQueue <- result:
	case <-p.abortCtx.Done():
	}
}

// executeTask executes a single task, recovering panics.
func (p *workerPool) executeTask(id int, twc taskWithContext) (result Result) {
	start := time.Now()
	result = Result{Task: twc.task, WorkerID: id}

	if err := p.abortCtx.Err(); err != nil {
		result.Error = fmt.Errorf("task skipped: %w", errors.ErrClosed)
		return result
	}

	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(id, twc.task)
	}

	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(twc.task, r)
				result.Error = nil
			} else {
				result.Error = &PanicError{Recovered: r, Stack: debug.Stack()}
			}
		}
		result.Duration = time.Since(start)
	}()

	ctx, cancel := context.WithCancel(twc.ctx)
	defer cancel()
	stop := context.AfterFunc(p.abortCtx, cancel)
	defer stop()

	if p.config.TaskTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancelTimeout()
	}

	result.Error = twc.task.Execute(ctx)
	return result
}

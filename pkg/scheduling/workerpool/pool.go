package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/pipex/pkg/common/validation"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// PanicError is the Result error of a task that panicked while no
// PanicHandler was configured.
type PanicError struct {
	Recovered interface{}
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Recovered)
}

// Pool represents a worker pool that can execute tasks concurrently.
type Pool interface {
	// Submit adds a task to the pool for execution.
	// Returns an error if the pool is shut down or if the task cannot be queued.
	Submit(task Task) error

	// SubmitWithTimeout submits a task with a timeout for queuing.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// SubmitWithContext submits a task with a context for cancellation.
	// The context bounds the queuing operation and is passed to Execute.
	SubmitWithContext(ctx context.Context, task Task) error

	// Results returns a channel of task results. Unless DiscardResults is
	// set, callers must drain it or workers block after each task.
	// The channel is closed when the pool has shut down.
	Results() <-chan Result

	// Shutdown stops accepting tasks and lets queued tasks complete.
	// Returns a channel that closes when all workers have exited.
	Shutdown() <-chan struct{}

	// ShutdownWithTimeout is like Shutdown but cancels running tasks and
	// skips queued ones once the timeout elapses.
	ShutdownWithTimeout(timeout time.Duration) <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the capacity of the shared task queue. Zero makes every
	// Submit hand its task directly to an idle worker.
	QueueSize int

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// BufferedResults gives the results channel a buffer of WorkerCount.
	BufferedResults bool

	// DiscardResults disables result delivery. Results returns a closed
	// channel and workers never block on it.
	DiscardResults bool

	// PanicHandler is called when a task panics. If nil, the panic is
	// reported as a *PanicError in the task's Result.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "worker_count", c.WorkerCount); err != nil {
		return err
	}
	return validation.ValidateNonNegative("workerpool", "queue_size", c.QueueSize)
}

type taskWithContext struct {
	task Task
	ctx  context.Context
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	taskQueue   chan taskWithContext
	resultQueue chan Result

	// abortCtx is canceled when a timed shutdown expires.
	abortCtx     context.Context
	abort        context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}

	// mu guards isShutdown and closing taskQueue; senders hold the read lock.
	mu         sync.RWMutex
	isShutdown bool

	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers and queue size.
// It panics on invalid arguments.
func New(workerCount, queueSize int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics on invalid configuration; use NewSafe to get an error instead.
func NewWithConfig(config Config) Pool {
	pool, err := NewSafe(config)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewSafe creates a worker pool, returning a ValidationError for invalid configuration.
func NewSafe(config Config) (Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var resultQueue chan Result
	switch {
	case config.DiscardResults:
		resultQueue = make(chan Result)
		close(resultQueue)
	case config.BufferedResults:
		resultQueue = make(chan Result, config.WorkerCount)
	default:
		resultQueue = make(chan Result)
	}

	abortCtx, abort := context.WithCancel(context.Background())
	pool := &workerPool{
		config:      config,
		taskQueue:   make(chan taskWithContext, config.QueueSize),
		resultQueue: resultQueue,
		abortCtx:    abortCtx,
		abort:       abort,
		done:        make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		pool.workerWg.Add(1)
		go pool.runWorker(i)
	}

	return pool, nil
}

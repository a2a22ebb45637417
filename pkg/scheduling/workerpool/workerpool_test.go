package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/pipex/internal/testutil"
	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/metrics"
)

// TestTask is a simple task for testing.
type TestTask struct {
	ID          int
	Duration    time.Duration
	ShouldErr   bool
	ShouldPanic bool
	Executed    *int32
}

func (t *TestTask) Execute(ctx context.Context) error {
	atomic.AddInt32(t.Executed, 1)

	if t.ShouldPanic {
		panic("test panic")
	}

	if t.Duration > 0 {
		select {
		case <-time.After(t.Duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if t.ShouldErr {
		return errors.New("test error")
	}
	return nil
}

func waitResult(t *testing.T, pool Pool) Result {
	t.Helper()
	select {
	case result := <-pool.Results():
		return result
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
	return Result{}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		workerCount int
		queueSize   int
		expectPanic bool
	}{
		{"valid params", 2, 10, false},
		{"single worker", 1, 5, false},
		{"handoff queue", 3, 0, false},
		{"zero workers", 0, 10, true},
		{"negative workers", -1, 10, true},
		{"invalid queue size", 2, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			pool := New(tt.workerCount, tt.queueSize)
			if !tt.expectPanic {
				testutil.AssertEqual(t, pool.Size(), tt.workerCount)
				<-pool.Shutdown()
			}
		})
	}
}

func TestNewSafe(t *testing.T) {
	_, err := NewSafe(Config{WorkerCount: 0})
	if !gferrors.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = NewSafe(Config{WorkerCount: 2, QueueSize: -1})
	if !gferrors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for negative queue size, got %v", err)
	}

	pool, err := NewSafe(Config{WorkerCount: 2})
	testutil.AssertNoError(t, err)
	<-pool.Shutdown()
}

func TestBasicTaskExecution(t *testing.T) {
	pool := New(2, 5)
	defer pool.Shutdown()

	var executed int32
	task := &TestTask{ID: 1, Duration: 10 * time.Millisecond, Executed: &executed}

	testutil.AssertNoError(t, pool.Submit(task))

	result := waitResult(t, pool)
	testutil.AssertNoError(t, result.Error)
	testutil.AssertEqual(t, result.Task == Task(task), true)
	testutil.AssertEqual(t, result.WorkerID >= 0, true)
	testutil.AssertEqual(t, result.Duration >= 10*time.Millisecond, true)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
}

func TestMultipleTaskExecution(t *testing.T) {
	pool := New(3, 10)
	defer pool.Shutdown()

	const numTasks = 10
	var executed int32

	for i := 0; i < numTasks; i++ {
		task := &TestTask{ID: i, Duration: 5 * time.Millisecond, Executed: &executed}
		testutil.AssertNoError(t, pool.Submit(task))
	}

	for i := 0; i < numTasks; i++ {
		waitResult(t, pool)
	}

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(numTasks))
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(numTasks))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(numTasks))
}

func TestTaskError(t *testing.T) {
	pool := New(1, 1)
	defer pool.Shutdown()

	task := &TestTask{ID: 1, ShouldErr: true, Executed: new(int32)}
	testutil.AssertNoError(t, pool.Submit(task))

	result := waitResult(t, pool)
	testutil.AssertError(t, result.Error)
	testutil.AssertEqual(t, result.Error.Error(), "test error")
}

func TestTaskPanic(t *testing.T) {
	var recoveredValue atomic.Value

	pool := NewWithConfig(Config{
		WorkerCount: 1,
		QueueSize:   1,
		PanicHandler: func(task Task, recovered interface{}) {
			recoveredValue.Store(recovered)
		},
	})
	defer pool.Shutdown()

	task := &TestTask{ID: 1, ShouldPanic: true, Executed: new(int32)}
	testutil.AssertNoError(t, pool.Submit(task))

	result := waitResult(t, pool)
	testutil.AssertEqual(t, recoveredValue.Load(), interface{}("test panic"))
	// The handler consumed the panic.
	testutil.AssertNoError(t, result.Error)
}

func TestTaskPanicDefaultHandler(t *testing.T) {
	pool := New(1, 1)
	defer pool.Shutdown()

	task := &TestTask{ID: 1, ShouldPanic: true, Executed: new(int32)}
	testutil.AssertNoError(t, pool.Submit(task))

	result := waitResult(t, pool)
	var perr *PanicError
	if !errors.As(result.Error, &perr) {
		t.Fatalf("expected *PanicError, got %v", result.Error)
	}
	testutil.AssertEqual(t, perr.Recovered, interface{}("test panic"))
	testutil.AssertEqual(t, len(perr.Stack) > 0, true)

	// The worker survives the panic.
	testutil.AssertNoError(t, pool.Submit(&TestTask{ID: 2, Executed: new(int32)}))
	testutil.AssertNoError(t, waitResult(t, pool).Error)
}

func TestSubmitWithTimeout(t *testing.T) {
	pool := New(1, 0)
	defer func() {
		<-pool.Results()
		<-pool.Shutdown()
	}()

	// Occupies the only worker; it then blocks delivering its result.
	testutil.AssertNoError(t, pool.Submit(&TestTask{ID: 1, Executed: new(int32)}))

	err := pool.SubmitWithTimeout(&TestTask{ID: 2, Executed: new(int32)}, 20*time.Millisecond)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(1))
}

func TestSubmitWithCanceledContext(t *testing.T) {
	pool := New(1, 5)
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.SubmitWithContext(ctx, &TestTask{ID: 1, Executed: new(int32)})
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestSubmitNilTask(t *testing.T) {
	pool := New(1, 1)
	defer pool.Shutdown()

	if err := pool.Submit(nil); !gferrors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestSubmitToShutdownPool(t *testing.T) {
	pool := New(1, 1)
	<-pool.Shutdown()

	err := pool.Submit(&TestTask{ID: 1, Executed: new(int32)})
	testutil.AssertErrorIs(t, err, gferrors.ErrClosed)

	// The results channel is closed after shutdown.
	_, ok := <-pool.Results()
	testutil.AssertEqual(t, ok, false)
}

func TestTaskTimeout(t *testing.T) {
	pool := NewWithConfig(Config{
		WorkerCount: 1,
		QueueSize:   1,
		TaskTimeout: 20 * time.Millisecond,
	})
	defer pool.Shutdown()

	task := &TestTask{ID: 1, Duration: time.Second, Executed: new(int32)}
	testutil.AssertNoError(t, pool.Submit(task))

	result := waitResult(t, pool)
	testutil.AssertErrorIs(t, result.Error, context.DeadlineExceeded)
}

func TestGracefulShutdownRunsQueuedTasks(t *testing.T) {
	pool := NewWithConfig(Config{WorkerCount: 1, QueueSize: 5, DiscardResults: true})

	var executed int32
	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, pool.Submit(&TestTask{ID: i, Duration: time.Millisecond, Executed: &executed}))
	}

	<-pool.Shutdown()
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(5))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(5))
}

func TestShutdownWithTimeoutCancelsRunningTasks(t *testing.T) {
	pool := NewWithConfig(Config{WorkerCount: 1, QueueSize: 1, DiscardResults: true})

	started := make(chan struct{})
	var canceled atomic.Bool
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})))
	<-started

	select {
	case <-pool.ShutdownWithTimeout(20 * time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete")
	}
	testutil.AssertEqual(t, canceled.Load(), true)
}

func TestWorkerCallbacks(t *testing.T) {
	var workerStarted, workerStopped int32
	var taskStarted, taskCompleted int32

	pool := NewWithConfig(Config{
		WorkerCount:   2,
		QueueSize:     1,
		OnWorkerStart: func(int) { atomic.AddInt32(&workerStarted, 1) },
		OnWorkerStop:  func(int) { atomic.AddInt32(&workerStopped, 1) },
		OnTaskStart:   func(int, Task) { atomic.AddInt32(&taskStarted, 1) },
		OnTaskComplete: func(int, Result) {
			atomic.AddInt32(&taskCompleted, 1)
		},
	})

	testutil.Eventually(t, func() bool { return atomic.LoadInt32(&workerStarted) == 2 }, time.Second, time.Millisecond)

	testutil.AssertNoError(t, pool.Submit(&TestTask{ID: 1, Executed: new(int32)}))
	waitResult(t, pool)

	testutil.AssertEqual(t, atomic.LoadInt32(&taskStarted), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&taskCompleted), int32(1))

	<-pool.Shutdown()
	testutil.AssertEqual(t, atomic.LoadInt32(&workerStopped), int32(2))
}

func TestConcurrentSubmission(t *testing.T) {
	pool := NewWithConfig(Config{WorkerCount: 5, QueueSize: 20, DiscardResults: true})

	const numGoroutines = 10
	const tasksPerGoroutine = 20

	var wg sync.WaitGroup
	var totalExecuted int32

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < tasksPerGoroutine; j++ {
				task := &TestTask{ID: goroutineID*1000 + j, Duration: time.Millisecond, Executed: &totalExecuted}
				if err := pool.Submit(task); err != nil {
					t.Errorf("Failed to submit task: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	<-pool.Shutdown()

	expected := numGoroutines * tasksPerGoroutine
	testutil.AssertEqual(t, atomic.LoadInt32(&totalExecuted), int32(expected))
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(expected))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(expected))
}

func TestWorkersBoundConcurrency(t *testing.T) {
	const workers = 3
	pool := NewWithConfig(Config{WorkerCount: workers, QueueSize: 30, DiscardResults: true})
	probe := testutil.NewProbe()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	for i := 0; i < 30; i++ {
		testutil.AssertNoError(t, pool.Submit(TaskFunc(func(context.Context) error {
			probe.Track(ctx, 2*time.Millisecond, nil)
			return nil
		})))
	}
	<-pool.Shutdown()

	if probe.Peak() > workers {
		t.Errorf("peak %d exceeds worker count %d", probe.Peak(), workers)
	}
	testutil.AssertEqual(t, probe.Calls(), int64(30))
}

func TestActiveWorkers(t *testing.T) {
	pool := New(2, 5)
	defer pool.Shutdown()

	testutil.AssertEqual(t, pool.ActiveWorkers(), 0)

	var executed int32
	for i := 0; i < 2; i++ {
		pool.Submit(&TestTask{ID: i, Duration: 100 * time.Millisecond, Executed: &executed})
	}

	testutil.Eventually(t, func() bool { return pool.ActiveWorkers() == 2 }, time.Second, time.Millisecond)

	waitResult(t, pool)
	waitResult(t, pool)
	testutil.AssertEqual(t, pool.ActiveWorkers(), 0)
}

func TestMetricsPool(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	pool, err := NewWithMetrics(Config{WorkerCount: 2, QueueSize: 4, DiscardResults: true}, "stage", reg)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(context.Context) error { return nil })))
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(context.Context) error { return errors.New("boom") })))
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(context.Context) error { panic("bad") })))
	<-pool.Shutdown()

	testutil.AssertEqual(t, promtest.ToFloat64(reg.WorkerPoolSize.WithLabelValues("stage")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.WorkerPoolTasks.WithLabelValues("stage", "success")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.WorkerPoolTasks.WithLabelValues("stage", "error")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.WorkerPoolTasks.WithLabelValues("stage", "panic")), 1.0)
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(3))
}

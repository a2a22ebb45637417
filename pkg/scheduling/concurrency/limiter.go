package concurrency

import (
	"context"
	"sync"

	"github.com/vnykmshr/pipex/pkg/common/validation"
)

// Limiter bounds the number of operations in flight at any given time. It
// acts as a semaphore with context support and state inspection.
type Limiter interface {
	// Acquire attempts to acquire a permit for one operation.
	// It returns true if a permit was available, false otherwise.
	// This method does not block.
	Acquire() bool

	// AcquireN attempts to acquire n permits without blocking.
	AcquireN(n int) bool

	// Wait blocks until a permit is available for one operation.
	// It returns an error if the context is canceled or deadline exceeded.
	Wait(ctx context.Context) error

	// WaitN blocks until n permits are available. Waiters are served in
	// arrival order.
	WaitN(ctx context.Context, n int) error

	// Release releases one permit back to the limiter.
	// It panics if more permits are released than were acquired.
	Release()

	// ReleaseN releases n permits back to the limiter.
	ReleaseN(n int)

	// SetCapacity changes the maximum number of concurrent operations allowed.
	// If the new capacity is less than current usage, it takes effect
	// as permits are released.
	SetCapacity(capacity int)

	// Capacity returns the maximum number of concurrent operations allowed.
	Capacity() int

	// Available returns the number of permits currently available.
	Available() int

	// InUse returns the number of permits currently in use.
	InUse() int

	// Waiting returns the number of callers blocked in Wait or WaitN.
	Waiting() int
}

// Config holds configuration options for creating a new concurrency Limiter.
type Config struct {
	// Capacity is the maximum number of concurrent operations allowed.
	Capacity int

	// InitialAvailable is the initial number of available permits.
	// If negative or greater than Capacity, defaults to Capacity.
	InitialAvailable int
}

type concurrencyLimiter struct {
	mu        sync.Mutex
	capacity  int
	available int
	inUse     int
	waiters   []*waiter
}

type waiter struct {
	n     int
	ready chan struct{}
}

// New creates a limiter allowing capacity concurrent operations.
// It panics if capacity is not positive; use NewSafe to get an error instead.
func New(capacity int) Limiter {
	l, err := NewSafe(capacity)
	if err != nil {
		panic(err)
	}
	return l
}

// NewSafe creates a new concurrency limiter with validation that returns an error instead of panicking.
func NewSafe(capacity int) (Limiter, error) {
	return NewWithConfigSafe(Config{
		Capacity:         capacity,
		InitialAvailable: -1,
	})
}

// NewWithConfigSafe creates a new concurrency limiter from config, returning a
// ValidationError if the capacity is not positive.
func NewWithConfigSafe(config Config) (Limiter, error) {
	if err := validation.ValidatePositive("concurrency", "capacity", config.Capacity); err != nil {
		return nil, err
	}

	initialAvailable := config.InitialAvailable
	if config.InitialAvailable < 0 || config.InitialAvailable > config.Capacity {
		initialAvailable = config.Capacity
	}

	return &concurrencyLimiter{
		capacity:  config.Capacity,
		available: initialAvailable,
		inUse:     config.Capacity - initialAvailable,
	}, nil
}

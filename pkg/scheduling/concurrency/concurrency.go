package concurrency

import (
	"context"
)

// Acquire attempts to acquire one permit without blocking.
func (cl *concurrencyLimiter) Acquire() bool {
	return cl.AcquireN(1)
}

// AcquireN attempts to acquire n permits without blocking. It fails while
// other callers are queued so that waiters are not overtaken.
func (cl *concurrencyLimiter) AcquireN(n int) bool {
	if n <= 0 {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if len(cl.waiters) == 0 && cl.available >= n {
		cl.available -= n
		cl.inUse += n
		return true
	}
	return false
}

// Wait blocks until one permit is available.
func (cl *concurrencyLimiter) Wait(ctx context.Context) error {
	return cl.WaitN(ctx, 1)
}

// WaitN blocks until n permits are available.
func (cl *concurrencyLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	cl.mu.Lock()
	if len(cl.waiters) == 0 && cl.available >= n {
		cl.available -= n
		cl.inUse += n
		cl.mu.Unlock()
		return nil
	}

	w := &waiter{n: n, ready: make(chan struct{})}
	cl.waiters = append(cl.waiters, w)
	cl.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if !cl.removeWaiter(w) {
			// Granted concurrently with cancellation; hand the permits back.
			cl.ReleaseN(n)
		}
		return ctx.Err()
	}
}

// Release releases one permit back to the limiter.
func (cl *concurrencyLimiter) Release() {
	cl.ReleaseN(1)
}

// ReleaseN releases n permits back to the limiter.
func (cl *concurrencyLimiter) ReleaseN(n int) {
	if n <= 0 {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.inUse < n {
		panic("concurrency: released more permits than acquired")
	}

	cl.inUse -= n
	// Permits above a lowered capacity are retired instead of returned.
	cl.available = max(min(cl.available+n, cl.capacity-cl.inUse), 0)
	cl.notifyWaiters()
}

// SetCapacity changes the maximum number of concurrent operations allowed.
func (cl *concurrencyLimiter) SetCapacity(newCapacity int) {
	if newCapacity <= 0 {
		panic("capacity must be positive")
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.capacity = newCapacity
	cl.available = max(newCapacity-cl.inUse, 0)
	cl.notifyWaiters()
}

// Capacity returns the maximum number of concurrent operations allowed.
func (cl *concurrencyLimiter) Capacity() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.capacity
}

// Available returns the number of permits currently available.
func (cl *concurrencyLimiter) Available() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.available
}

// InUse returns the number of permits currently in use.
func (cl *concurrencyLimiter) InUse() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.inUse
}

// Waiting returns the number of queued waiters.
func (cl *concurrencyLimiter) Waiting() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.waiters)
}

// notifyWaiters grants permits to waiters in arrival order, stopping at the
// first one that cannot be satisfied. Must be called with cl.mu held.
func (cl *concurrencyLimiter) notifyWaiters() {
	i := 0
	for ; i < len(cl.waiters); i++ {
		w := cl.waiters[i]
		if cl.available < w.n {
			break
		}
		cl.available -= w.n
		cl.inUse += w.n
		close(w.ready)
	}
	cl.waiters = cl.waiters[i:]
}

// removeWaiter drops w from the queue and reports whether it was still
// queued, i.e. had not been granted its permits.
func (cl *concurrencyLimiter) removeWaiter(w *waiter) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for i, q := range cl.waiters {
		if q == w {
			cl.waiters = append(cl.waiters[:i], cl.waiters[i+1:]...)
			// A smaller waiter behind w may fit now.
			cl.notifyWaiters()
			return true
		}
	}
	return false
}

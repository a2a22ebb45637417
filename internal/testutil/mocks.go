package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Probe records how many calls are in flight at once. Wrap a transformation
// body with Enter/Leave (or use Track) to measure the concurrency a dispatch
// mode actually produced.
type Probe struct {
	active  atomic.Int64
	peak    atomic.Int64
	calls   atomic.Int64
	mu      sync.Mutex
	samples []int64
}

// NewProbe creates an empty Probe.
func NewProbe() *Probe {
	return &Probe{}
}

// Enter marks the start of one call and returns the number now in flight.
func (p *Probe) Enter() int64 {
	p.calls.Add(1)
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.mu.Lock()
	p.samples = append(p.samples, n)
	p.mu.Unlock()
	return n
}

// Leave marks the end of one call.
func (p *Probe) Leave() {
	p.active.Add(-1)
}

// Track runs fn between Enter and Leave, sleeping delay first to keep the
// call in flight long enough for overlaps to be observed.
func (p *Probe) Track(ctx context.Context, delay time.Duration, fn func()) {
	p.Enter()
	defer p.Leave()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
	if fn != nil {
		fn()
	}
}

// Active returns the number of calls currently in flight.
func (p *Probe) Active() int64 {
	return p.active.Load()
}

// Peak returns the highest number of calls observed in flight at once.
func (p *Probe) Peak() int64 {
	return p.peak.Load()
}

// Calls returns the total number of calls recorded.
func (p *Probe) Calls() int64 {
	return p.calls.Load()
}

// Samples returns the in-flight count observed at every Enter.
func (p *Probe) Samples() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.samples))
	copy(out, p.samples)
	return out
}

package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/metrics"
	"github.com/vnykmshr/pipex/pkg/outcome"
	"github.com/vnykmshr/pipex/pkg/scheduling/concurrency"
	"github.com/vnykmshr/pipex/pkg/scheduling/workerpool"
)

// Mode selects how the items of one stage are executed.
type Mode int

const (
	// ModeSync runs items one after another on the calling goroutine.
	ModeSync Mode = iota
	// ModeUnbounded starts one goroutine per item.
	ModeUnbounded
	// ModeWindowed keeps at most Window items in flight.
	ModeWindowed
	// ModePool runs items on a fixed pool of Workers goroutines.
	ModePool
)

func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeUnbounded:
		return "unbounded"
	case ModeWindowed:
		return "windowed"
	case ModePool:
		return "pool"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// Func transforms the item at index. A non-nil error aborts the dispatch.
type Func func(ctx context.Context, index int, item any) (any, error)

// RecoverFunc turns a panic raised while transforming the item at index into
// that item's slot value. Returning ok=false reports the panic as a defect.
type RecoverFunc func(index int, recovered any) (value any, ok bool)

// Config describes one dispatch.
type Config struct {
	Mode Mode

	// Window bounds in-flight items in ModeWindowed. Must be positive.
	Window int

	// Workers sizes the pool in ModePool. Values <= 0 use runtime.NumCPU().
	Workers int

	// Recover handles panics. If nil, every panic is a defect.
	Recover RecoverFunc

	// Stage names the stage in DefectErrors and metric labels.
	Stage string

	// Metrics receives dispatch, limiter and pool metrics. Nil disables them.
	Metrics *metrics.Registry
}

// Sync returns a synchronous configuration.
func Sync() Config { return Config{Mode: ModeSync} }

// Unbounded returns a configuration starting one goroutine per item.
func Unbounded() Config { return Config{Mode: ModeUnbounded} }

// Windowed returns a configuration with at most w items in flight.
func Windowed(w int) Config { return Config{Mode: ModeWindowed, Window: w} }

// Pool returns a configuration running items on k workers.
func Pool(k int) Config { return Config{Mode: ModePool, Workers: k} }

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSync, ModeUnbounded, ModePool:
		return nil
	case ModeWindowed:
		if c.Window <= 0 {
			return gferrors.NewValidationError("dispatch", "window", c.Window, "must be positive").
				WithHint("omit the window on the stage to use the default")
		}
		return nil
	}
	return gferrors.NewValidationError("dispatch", "mode", int(c.Mode), "unknown mode")
}

// WorkerCount returns the effective pool size.
func (c Config) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Controller executes the items of a stage according to its Config.
type Controller struct {
	config Config
}

// New creates a Controller, returning a ValidationError for invalid configuration.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Controller{config: config}, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Run applies fn to every item and returns the results in input order.
//
// A cancelled ctx stops new items from being launched; items already started
// run to completion and Run returns ctx.Err(). The first error returned by fn,
// or the first panic not absorbed by Recover, stops new launches and is
// returned once started items finish. Results are nil whenever the error is
// non-nil.
func (c *Controller) Run(ctx context.Context, items []any, fn Func) ([]any, error) {
	r := &run{config: c.config, fn: fn, slots: outcome.NewSlots(len(items))}
	if m := c.config.Metrics; m != nil {
		r.items = m.DispatchItems.WithLabelValues(c.config.Mode.String())
		r.inFlight = m.DispatchInFlight.WithLabelValues(c.config.Mode.String())
		r.panics = m.DispatchPanics.WithLabelValues(c.config.Mode.String())
	}

	var err error
	switch c.config.Mode {
	case ModeSync:
		err = r.sync(ctx, items)
	case ModeUnbounded:
		err = r.unbounded(ctx, items)
	case ModeWindowed:
		err = r.windowed(ctx, items)
	case ModePool:
		err = r.pool(ctx, items)
	default:
		err = c.config.Validate()
	}

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.slots.Complete() {
		return nil, fmt.Errorf("dispatch: %d of %d items produced no result", r.slots.Len()-r.slots.Filled(), r.slots.Len())
	}
	return r.slots.Values(), nil
}

// Run is a shorthand for New followed by Controller.Run.
func Run(ctx context.Context, config Config, items []any, fn Func) ([]any, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, items, fn)
}

type counter interface{ Inc() }

type gauge interface {
	Inc()
	Dec()
}

type run struct {
	config Config
	fn     Func
	slots  *outcome.Slots

	items    counter
	inFlight gauge
	panics   counter
}

// exec runs one item and stores its result.
func (r *run) exec(ctx context.Context, i int, item any) (err error) {
	if r.inFlight != nil {
		r.inFlight.Inc()
		defer r.inFlight.Dec()
		r.items.Inc()
	}

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if r.panics != nil {
			r.panics.Inc()
		}
		if r.config.Recover != nil {
			if v, ok := r.config.Recover(i, rec); ok {
				err = r.slots.Set(i, v)
				return
			}
		}
		err = &gferrors.DefectError{Stage: r.config.Stage, Item: i, Recovered: rec, Stack: debug.Stack()}
	}()

	v, err := r.fn(ctx, i, item)
	if err != nil {
		return err
	}
	return r.slots.Set(i, v)
}

func (r *run) sync(ctx context.Context, items []any) error {
	for i, item := range items {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.exec(ctx, i, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) unbounded(ctx context.Context, items []any) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.exec(gctx, i, item)
		})
	}
	return r.firstError(ctx, g.Wait())
}

func (r *run) windowed(ctx context.Context, items []any) error {
	var limiter concurrency.Limiter = concurrency.New(r.config.Window)
	if r.config.Metrics != nil {
		limiter = concurrency.NewWithMetrics(limiter, r.label(), r.config.Metrics)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer limiter.Release()
			return r.exec(gctx, i, item)
		})
	}
	return r.firstError(ctx, g.Wait())
}

func (r *run) pool(ctx context.Context, items []any) error {
	workers := r.config.WorkerCount()
	pool, err := workerpool.NewSafe(workerpool.Config{
		WorkerCount:    workers,
		QueueSize:      workers,
		DiscardResults: true,
	})
	if err != nil {
		return err
	}
	if r.config.Metrics != nil {
		pool = workerpool.WrapWithMetrics(pool, r.label(), r.config.Metrics)
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	for i, item := range items {
		task := workerpool.TaskFunc(func(tctx context.Context) error {
			// Queued items are not started once the dispatch is aborted.
			if pctx.Err() != nil {
				return nil
			}
			if err := r.exec(tctx, i, item); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
			return nil
		})
		if err := pool.SubmitWithContext(pctx, task); err != nil {
			break
		}
	}
	<-pool.Shutdown()
	return firstErr
}

// firstError drops errgroup errors that merely echo the parent's cancellation.
func (r *run) firstError(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && err == ctx.Err() {
		return nil
	}
	return err
}

func (r *run) label() string {
	if r.config.Stage == "" {
		return r.config.Mode.String()
	}
	return r.config.Stage
}

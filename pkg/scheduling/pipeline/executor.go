package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/common/validation"
	"github.com/vnykmshr/pipex/pkg/metrics"
	"github.com/vnykmshr/pipex/pkg/outcome"
	"github.com/vnykmshr/pipex/pkg/scheduling/dispatch"
	"github.com/vnykmshr/pipex/pkg/strategy"
)

// DefaultWindow is the window of AsyncWindowed stages that do not set one.
const DefaultWindow = 10

const tracerName = "github.com/vnykmshr/pipex/pkg/scheduling/pipeline"

// Config holds executor configuration options.
type Config struct {
	// Registry resolves strategies of fallible stages. If nil, an empty
	// registry is used, so only built-in strategy names resolve.
	Registry *strategy.Registry

	// DefaultWindow applies to windowed stages with Concurrency 0.
	// Zero means DefaultWindow.
	DefaultWindow int

	// DefaultWorkers applies to pool stages with Concurrency <= 0.
	// Zero means runtime.NumCPU().
	DefaultWorkers int

	// Timeout bounds each run. Zero means no timeout.
	Timeout time.Duration

	// Logger receives run and stage lifecycle events. If nil, nothing is logged.
	Logger *zerolog.Logger

	// Tracer creates run and stage spans. If nil, the global tracer provider is used.
	Tracer trace.Tracer

	// Metrics receives executor and dispatch metrics. Nil disables them.
	Metrics *metrics.Registry

	// OnStageStart is called before a stage's items are dispatched.
	OnStageStart func(info StageInfo)

	// OnStageComplete is called after a stage finishes, successfully or not.
	OnStageComplete func(result StageResult)

	// OnRunComplete is called once per run with its final result.
	OnRunComplete func(result Result)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegative("pipeline", "default_window", c.DefaultWindow); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "default_workers", c.DefaultWorkers); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return gferrors.NewValidationError("pipeline", "timeout", c.Timeout, "cannot be negative")
	}
	return nil
}

// Executor runs stage lists over item collections. It keeps no state
// between runs other than statistics, so one Executor may serve concurrent runs.
type Executor struct {
	config   Config
	registry *strategy.Registry
	logger   zerolog.Logger
	tracer   trace.Tracer

	mu    sync.RWMutex
	stats Stats
}

// New creates an executor with default configuration.
func New() *Executor {
	return NewWithConfig(Config{})
}

// NewWithConfig creates an executor with the specified configuration.
// It panics on invalid configuration; use NewSafe to get an error instead.
func NewWithConfig(config Config) *Executor {
	e, err := NewSafe(config)
	if err != nil {
		panic(err)
	}
	return e
}

// NewSafe creates an executor, returning a ValidationError for invalid configuration.
func NewSafe(config Config) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DefaultWindow == 0 {
		config.DefaultWindow = DefaultWindow
	}

	registry := config.Registry
	if registry == nil {
		registry = strategy.NewRegistry()
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Executor{
		config:   config,
		registry: registry,
		logger:   logger,
		tracer:   tracer,
		stats:    Stats{StageStats: make(map[string]StageStats)},
	}, nil
}

// Registry returns the strategy registry used by the executor.
func (e *Executor) Registry() *strategy.Registry {
	return e.registry
}

// Run executes stages left to right over input and returns the final
// collection in Result.Output.
//
// Every stage is validated, and every strategy resolved, before any item
// runs. A configuration error, a defect or a type mismatch ends the run with
// a *errors.StageError; a cancelled ctx ends it with an error matching
// errors.ErrCancelled. In all those cases Result.Output is nil.
func (e *Executor) Run(ctx context.Context, stages []Stage, input []any) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Input:     input,
		StartTime: time.Now(),
	}

	ctx = pctx.WithRunID(ctx, result.RunID)
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipex.run_id", result.RunID),
		attribute.Int("pipex.stages", len(stages)),
		attribute.Int("pipex.items", len(input)),
	))
	defer span.End()

	log := e.logger.With().Str("run_id", result.RunID).Logger()
	log.Debug().Int("stages", len(stages)).Int("items", len(input)).Msg("pipeline run started")

	output, err := e.execute(ctx, stages, input, result, log)
	e.finish(result, output, err)

	switch result.Status {
	case StatusSucceeded:
		span.SetAttributes(attribute.Int("pipex.output", len(result.Output)))
		span.SetStatus(codes.Ok, "")
		log.Debug().Int("output", len(result.Output)).Dur("duration", result.Duration).Msg("pipeline run completed")
	case StatusCancelled:
		span.SetStatus(codes.Error, "cancelled")
		log.Debug().Err(result.Error).Msg("pipeline run cancelled")
	default:
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Error())
		log.Error().Err(result.Error).Msg("pipeline run failed")
	}

	return result, result.Error
}

// RunAsync runs the pipeline in a new goroutine and delivers the result on
// the returned channel, which is closed afterwards.
func (e *Executor) RunAsync(ctx context.Context, stages []Stage, input []any) <-chan *Result {
	resultCh := make(chan *Result, 1)
	go func() {
		defer close(resultCh)
		result, _ := e.Run(ctx, stages, input)
		resultCh <- result
	}()
	return resultCh
}

func (e *Executor) execute(ctx context.Context, stages []Stage, input []any, result *Result, log zerolog.Logger) ([]any, error) {
	plans, err := e.plan(stages)
	if err != nil {
		return nil, err
	}

	current := input
	for i := range plans {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		sr, next, err := e.runStage(ctx, &plans[i], current, log)
		result.StageResults = append(result.StageResults, sr)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// stagePlan is a validated stage with its strategy resolved.
type stagePlan struct {
	stage    Stage
	index    int
	name     string
	strategy strategy.Strategy
	dispatch dispatch.Config
}

// plan validates all stages and resolves their strategies.
func (e *Executor) plan(stages []Stage) ([]stagePlan, error) {
	plans := make([]stagePlan, len(stages))
	for i, s := range stages {
		p := stagePlan{stage: s, index: i, name: s.displayName(i)}

		fail := func(cause error) error {
			return &gferrors.StageError{Stage: p.name, Index: i, Cause: cause}
		}

		if s.transform == nil {
			return nil, fail(gferrors.NewValidationError("pipeline", "stage", p.name, "has no transformation").
				WithHint("build stages with pipeline.Map, pipeline.Try or pipeline.TryOutcome"))
		}

		cfg, err := e.dispatchConfig(s)
		if err != nil {
			return nil, fail(err)
		}
		cfg.Stage = p.name
		cfg.Metrics = e.config.Metrics
		if s.Fallible && s.recover != nil {
			cfg.Recover = s.recover
		}
		if err := cfg.Validate(); err != nil {
			return nil, fail(err)
		}
		p.dispatch = cfg

		if s.Fallible {
			st, err := e.resolveStrategy(s)
			if err != nil {
				return nil, fail(err)
			}
			p.strategy = st
		}
		plans[i] = p
	}
	return plans, nil
}

func (e *Executor) dispatchConfig(s Stage) (dispatch.Config, error) {
	switch s.Kind {
	case Sync:
		return dispatch.Sync(), nil
	case AsyncUnbounded:
		return dispatch.Unbounded(), nil
	case AsyncWindowed:
		if s.Concurrency < 0 {
			return dispatch.Config{}, gferrors.NewValidationError("pipeline", "window", s.Concurrency, "must be positive").
				WithHint("omit the window to use the default")
		}
		return dispatch.Windowed(e.window(s.Concurrency)), nil
	case ParallelPool:
		workers := s.Concurrency
		if workers <= 0 {
			workers = e.config.DefaultWorkers
		}
		return dispatch.Pool(workers), nil
	case AsyncAutoFilter:
		if !s.Fallible {
			return dispatch.Config{}, gferrors.NewValidationError("pipeline", "kind", s.Kind.String(), "requires a fallible stage").
				WithHint("build the stage with pipeline.Try or pipeline.TryOutcome")
		}
		if s.Concurrency < 0 {
			return dispatch.Config{}, gferrors.NewValidationError("pipeline", "window", s.Concurrency, "must be positive")
		}
		if s.Concurrency > 0 {
			return dispatch.Windowed(s.Concurrency), nil
		}
		return dispatch.Unbounded(), nil
	}
	return dispatch.Config{}, gferrors.NewValidationError("pipeline", "kind", int(s.Kind), "unknown stage kind")
}

func (e *Executor) window(w int) int {
	if w == 0 {
		return e.config.DefaultWindow
	}
	return w
}

// resolveStrategy picks the strategy of a fallible stage: auto-filter, then
// the direct reference, the strategy name, the explicit key, the stage name
// and finally the stage's success and failure types.
func (e *Executor) resolveStrategy(s Stage) (strategy.Strategy, error) {
	switch {
	case s.Kind == AsyncAutoFilter:
		return strategy.AutoFilter(), nil
	case s.Strategy != nil:
		return s.Strategy, nil
	case s.StrategyName != "":
		return e.registry.Lookup(s.StrategyName)
	case !s.StrategyKey.IsZero():
		return e.registry.Resolve(s.StrategyKey)
	}

	if s.Name != "" {
		if st, err := e.registry.Resolve(strategy.NameKey(s.Name)); err == nil {
			return st, nil
		}
	}
	if st, err := e.registry.Resolve(strategy.TypePairKey(s.SuccessType, s.FailureType)); err == nil {
		return st, nil
	}
	return nil, fmt.Errorf("%w: no strategy for stage %q or types (%v, %v)",
		gferrors.ErrUnregisteredStrategy, s.Name, s.SuccessType, s.FailureType)
}

func (e *Executor) runStage(ctx context.Context, p *stagePlan, items []any, log zerolog.Logger) (StageResult, []any, error) {
	kind := p.stage.Kind.String()
	sr := StageResult{
		Name:      p.name,
		Index:     p.index,
		Kind:      p.stage.Kind,
		Items:     len(items),
		StartTime: time.Now(),
	}
	if p.strategy != nil {
		sr.Strategy = p.strategy.Name()
	}

	ctx = pctx.WithStage(ctx, p.name, p.index)
	ctx, span := e.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("pipex.stage", p.name),
		attribute.Int("pipex.stage_index", p.index),
		attribute.String("pipex.kind", kind),
		attribute.Int("pipex.items", len(items)),
	))
	defer span.End()

	slog := log.With().Str("stage", p.name).Str("kind", kind).Int("items", len(items)).Logger()
	slog.Debug().Msg("stage started")
	if e.config.OnStageStart != nil {
		e.config.OnStageStart(StageInfo{
			RunID: pctx.RunID(ctx),
			Name:  p.name,
			Index: p.index,
			Kind:  p.stage.Kind,
			Items: len(items),
		})
	}

	next, err := e.invoke(ctx, p, items, &sr)

	sr.EndTime = time.Now()
	sr.Duration = sr.EndTime.Sub(sr.StartTime)
	sr.Error = err
	if err == nil {
		sr.Output = len(next)
	}

	e.updateStageStats(sr)
	e.recordStage(sr, kind)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Debug().Err(err).Dur("duration", sr.Duration).Msg("stage aborted")
	} else {
		span.SetAttributes(
			attribute.Int("pipex.failures", sr.Failures),
			attribute.Int("pipex.output", sr.Output),
		)
		slog.Debug().Int("failures", sr.Failures).Int("output", sr.Output).Dur("duration", sr.Duration).Msg("stage completed")
	}

	if e.config.OnStageComplete != nil {
		e.config.OnStageComplete(sr)
	}
	return sr, next, err
}

// invoke dispatches the items of one stage and applies its strategy.
func (e *Executor) invoke(ctx context.Context, p *stagePlan, items []any, sr *StageResult) ([]any, error) {
	stageErr := func(cause error) error {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(cause, ctxErr) {
			return cancelled(ctxErr)
		}
		return &gferrors.StageError{Stage: p.name, Index: p.index, Cause: cause}
	}

	values, err := dispatch.Run(ctx, p.dispatch, items, p.stage.transform)
	if err != nil {
		return nil, stageErr(err)
	}
	if !p.stage.Fallible {
		return values, nil
	}

	outcomes := make([]outcome.Result, len(values))
	for i, v := range values {
		r, ok := v.(outcome.Result)
		if !ok {
			return nil, stageErr(&gferrors.TypeMismatchError{
				Stage: p.name,
				Item:  i,
				Want:  "outcome.Result",
				Got:   fmt.Sprintf("%T", v),
			})
		}
		if r.IsFailure() {
			sr.Failures++
		}
		outcomes[i] = r
	}

	next, err := p.strategy.Handle(ctx, outcomes)
	if err != nil {
		return nil, stageErr(fmt.Errorf("strategy %s: %w", p.strategy.Name(), err))
	}
	if next == nil {
		next = []any{}
	}
	return next, nil
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", gferrors.ErrCancelled, cause)
}

func (e *Executor) finish(result *Result, output []any, err error) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Error = err

	switch {
	case err == nil:
		result.Status = StatusSucceeded
		result.Output = output
	case gferrors.IsCancelled(err):
		result.Status = StatusCancelled
	default:
		result.Status = StatusFailed
	}

	e.updateStats(result)
	if m := e.config.Metrics; m != nil {
		m.RunsTotal.WithLabelValues(string(result.Status)).Inc()
		m.RunDuration.WithLabelValues(string(result.Status)).Observe(result.Duration.Seconds())
	}
	if e.config.OnRunComplete != nil {
		e.config.OnRunComplete(*result)
	}
}

func (e *Executor) recordStage(sr StageResult, kind string) {
	m := e.config.Metrics
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(sr.Name, kind).Inc()
	m.StageDuration.WithLabelValues(sr.Name, kind).Observe(sr.Duration.Seconds())
	m.StageItemsIn.WithLabelValues(sr.Name).Add(float64(sr.Items))
	if sr.Failures > 0 {
		m.StageFailures.WithLabelValues(sr.Name, sr.Strategy).Add(float64(sr.Failures))
	}
	if sr.Error != nil {
		m.FatalErrors.WithLabelValues(sr.Name, errorReason(sr.Error)).Inc()
	} else {
		m.StageItemsOut.WithLabelValues(sr.Name).Add(float64(sr.Output))
	}
}

func errorReason(err error) string {
	switch {
	case gferrors.IsCancelled(err):
		return "cancelled"
	case errors.Is(err, gferrors.ErrTypeMismatch):
		return "type_mismatch"
	case gferrors.IsDefect(err):
		return "defect"
	case gferrors.IsConfigurationError(err):
		return "configuration"
	}
	return "other"
}

// Stats returns executor statistics.
func (e *Executor) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	statsCopy := e.stats
	statsCopy.StageStats = make(map[string]StageStats, len(e.stats.StageStats))
	for k, v := range e.stats.StageStats {
		statsCopy.StageStats[k] = v
	}
	if statsCopy.TotalRuns > 0 {
		statsCopy.AverageDuration = time.Duration(int64(statsCopy.TotalDuration) / statsCopy.TotalRuns)
	}
	return statsCopy
}

func (e *Executor) updateStats(result *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalRuns++
	e.stats.TotalDuration += result.Duration
	e.stats.LastRunAt = result.EndTime

	switch result.Status {
	case StatusSucceeded:
		e.stats.SucceededRuns++
	case StatusCancelled:
		e.stats.CancelledRuns++
	default:
		e.stats.FailedRuns++
	}
}

func (e *Executor) updateStageStats(sr StageResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, exists := e.stats.StageStats[sr.Name]
	if !exists {
		stats = StageStats{Name: sr.Name}
	}

	stats.ExecutionCount++
	stats.TotalDuration += sr.Duration
	stats.ItemsIn += int64(sr.Items)
	stats.Failures += int64(sr.Failures)
	if sr.Error != nil {
		stats.ErrorCount++
	} else {
		stats.ItemsOut += int64(sr.Output)
	}
	stats.AverageDuration = time.Duration(int64(stats.TotalDuration) / stats.ExecutionCount)

	e.stats.StageStats[sr.Name] = stats
}

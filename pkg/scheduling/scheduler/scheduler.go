package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/common/validation"
	"github.com/vnykmshr/pipex/pkg/metrics"
	"github.com/vnykmshr/pipex/pkg/scheduling/pipeline"
)

var (
	// ErrJobExists is returned when scheduling an id that is already in use.
	ErrJobExists = errors.New("job already scheduled")

	// ErrJobNotFound is returned for operations on an unknown id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned by Trigger when the previous run of the job
	// has not finished.
	ErrJobRunning = errors.New("job still running")
)

// Job is a pipeline run started by the scheduler.
type Job struct {
	// Name labels the job in logs and metrics. Defaults to the schedule id.
	Name string

	// Source produces the input items of each run.
	Source func(ctx context.Context) ([]any, error)

	Stages []pipeline.Stage

	// Sink receives the result of every successful run. Optional.
	Sink func(ctx context.Context, result *pipeline.Result) error
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	ID       string
	Name     string
	Spec     string
	NextRun  time.Time
	PrevRun  time.Time
	Runs     int64
	Failures int64
	Skipped  int64
	Created  time.Time
}

// Scheduler runs pipeline jobs on cron schedules.
type Scheduler interface {
	// ScheduleCron schedules job using a cron expression. Both five-field
	// and six-field (leading seconds) expressions are accepted, as are
	// descriptors such as "@hourly" and "@every 5m".
	ScheduleCron(id string, cronExpr string, job Job) error

	// ScheduleEvery schedules job at a fixed interval.
	ScheduleEvery(id string, interval time.Duration, job Job) error

	// Trigger runs a scheduled job immediately on the calling goroutine.
	Trigger(ctx context.Context, id string) (*pipeline.Result, error)

	Cancel(id string) bool
	CancelAll()
	List() []JobInfo

	Start() error

	// Stop prevents new runs and waits for running jobs to finish. When ctx
	// expires first, running jobs are cancelled and ctx.Err() is returned.
	Stop(ctx context.Context) error
}

// Config holds scheduler configuration.
type Config struct {
	// Name labels the scheduler in metrics. Defaults to "default".
	Name string

	// Executor runs the jobs. Defaults to pipeline.New().
	Executor *pipeline.Executor

	// Location evaluates cron expressions. Defaults to time.Local.
	Location *time.Location

	// MaxJobs caps the number of scheduled jobs (default: 1000).
	MaxJobs int

	Logger  *zerolog.Logger
	Metrics *metrics.Registry

	// OnJobComplete is called after every run that was not skipped.
	OnJobComplete func(info JobInfo, result *pipeline.Result, err error)
}

type entry struct {
	id      string
	job     Job
	spec    string
	cronID  cron.EntryID
	created time.Time

	running  atomic.Bool
	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

type scheduler struct {
	name     string
	executor *pipeline.Executor
	location *time.Location
	maxJobs  int
	logger   zerolog.Logger
	metrics  *metrics.Registry
	onDone   func(JobInfo, *pipeline.Result, error)
	cron     *cron.Cron

	// ctx is cancelled when Stop gives up waiting for running jobs.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*entry
	running bool
	stopped bool
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	executor := cfg.Executor
	if executor == nil {
		executor = pipeline.New()
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1000
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("scheduler", name).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		name:     name,
		executor: executor,
		location: location,
		maxJobs:  maxJobs,
		logger:   logger,
		metrics:  cfg.Metrics,
		onDone:   cfg.OnJobComplete,
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{logger: logger}),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*entry),
	}
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, job Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "cron_expression", cronExpr); err != nil {
		return err
	}
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return gferrors.NewValidationError("scheduler", "cron_expression", cronExpr, err.Error())
	}
	return s.add(id, cronExpr, schedule, job)
}

func (s *scheduler) ScheduleEvery(id string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return gferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}
	return s.add(id, "@every "+interval.String(), every(interval), job)
}

func (s *scheduler) add(id, spec string, schedule cron.Schedule, job Job) error {
	if err := validateJob(id, job); err != nil {
		return err
	}
	if job.Name == "" {
		job.Name = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("cannot schedule job %q: %w", id, gferrors.ErrClosed)
	}
	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("%w: %q, cancel the existing job first", ErrJobExists, id)
	}
	if len(s.jobs) >= s.maxJobs {
		return fmt.Errorf("cannot schedule job: maximum number of jobs (%d) reached", s.maxJobs)
	}

	e := &entry{id: id, job: job, spec: spec, created: time.Now()}
	e.cronID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		_, _ = s.run(s.ctx, e)
	}))
	s.jobs[id] = e

	s.logger.Debug().Str("job", job.Name).Str("spec", spec).Msg("job scheduled")
	return nil
}

func validateJob(id string, job Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if len(id) > 255 {
		return gferrors.NewValidationError("scheduler", "id", id, "too long (max 255 characters)")
	}
	if job.Source == nil {
		return gferrors.NewValidationError("scheduler", "source", nil, "cannot be nil").
			WithHint("provide a function producing the input items of each run")
	}
	return nil
}

func (s *scheduler) Trigger(ctx context.Context, id string) (*pipeline.Result, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return s.run(ctx, e)
}

// run executes one run of e unless the previous run is still in progress.
func (s *scheduler) run(ctx context.Context, e *entry) (*pipeline.Result, error) {
	log := s.logger.With().Str("job", e.job.Name).Logger()

	if !e.running.CompareAndSwap(false, true) {
		e.skipped.Add(1)
		if s.metrics != nil {
			s.metrics.JobSkipped.WithLabelValues(s.name, e.job.Name).Inc()
		}
		log.Warn().Msg("previous run still in progress, skipping")
		return nil, fmt.Errorf("%w: %q", ErrJobRunning, e.id)
	}
	defer e.running.Store(false)

	start := time.Now()
	result, err := s.execute(ctx, e)
	duration := time.Since(start)

	e.runs.Add(1)
	status := string(pipeline.StatusSucceeded)
	switch {
	case err == nil:
	case gferrors.IsCancelled(err) || errors.Is(err, context.Canceled):
		status = string(pipeline.StatusCancelled)
	default:
		status = string(pipeline.StatusFailed)
	}
	if err != nil {
		e.failures.Add(1)
		log.Error().Err(err).Dur("duration", duration).Msg("job failed")
	} else {
		log.Debug().Int("output", len(result.Output)).Dur("duration", duration).Msg("job completed")
	}

	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(s.name, e.job.Name, status).Inc()
		s.metrics.JobDuration.WithLabelValues(s.name, e.job.Name).Observe(duration.Seconds())
	}
	if s.onDone != nil {
		s.onDone(s.info(e), result, err)
	}
	return result, err
}

func (s *scheduler) execute(ctx context.Context, e *entry) (*pipeline.Result, error) {
	items, err := e.job.Source(ctx)
	if err != nil {
		return nil, gferrors.NewOperationError("scheduler", "Source", err).WithContext("job " + e.job.Name)
	}

	result, err := s.executor.Run(ctx, e.job.Stages, items)
	if err != nil {
		return result, err
	}

	if e.job.Sink != nil {
		if err := e.job.Sink(ctx, result); err != nil {
			return result, gferrors.NewOperationError("scheduler", "Sink", err).WithContext("job " + e.job.Name)
		}
	}
	return result, nil
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[id]
	if !exists {
		return false
	}
	s.cron.Remove(e.cronID)
	delete(s.jobs, id)
	return true
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.jobs {
		s.cron.Remove(e.cronID)
		delete(s.jobs, id)
	}
}

func (s *scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, s.info(e))
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].NextRun.Equal(jobs[j].NextRun) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].NextRun.Before(jobs[j].NextRun)
	})
	return jobs
}

func (s *scheduler) info(e *entry) JobInfo {
	ce := s.cron.Entry(e.cronID)
	return JobInfo{
		ID:       e.id,
		Name:     e.job.Name,
		Spec:     e.spec,
		NextRun:  ce.Next,
		PrevRun:  ce.Prev,
		Runs:     e.runs.Load(),
		Failures: e.failures.Load(),
		Skipped:  e.skipped.Load(),
		Created:  e.created,
	}
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("cannot start scheduler: %w", gferrors.ErrClosed)
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.cron.Start()
	s.logger.Debug().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

func (s *scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running = false
	s.mu.Unlock()

	// cron.Stop waits for jobs started by the cron loop. Triggered runs
	// share the caller's context and are not tracked here.
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.logger.Debug().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		s.logger.Warn().Msg("scheduler stopped, running jobs cancelled")
		return ctx.Err()
	}
}

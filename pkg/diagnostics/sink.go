package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	pctx "github.com/vnykmshr/pipex/pkg/common/context"
)

// Record describes one failed item dropped by a strategy.
type Record struct {
	RunID      string
	Stage      string
	StageIndex int
	// Index is the position of the failed item in the stage's input.
	Index    int
	Strategy string
	Failure  any
	Time     time.Time
}

// NewRecord builds a Record for the failure at index, taking run and stage
// attribution from ctx.
func NewRecord(ctx context.Context, strategy string, index int, failure any) Record {
	stage, stageIndex := pctx.Stage(ctx)
	return Record{
		RunID:      pctx.RunID(ctx),
		Stage:      stage,
		StageIndex: stageIndex,
		Index:      index,
		Strategy:   strategy,
		Failure:    failure,
		Time:       time.Now().UTC(),
	}
}

// Message renders the failure value as text.
func (r Record) Message() string {
	if err, ok := r.Failure.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r.Failure)
}

// Sink receives failure records.
type Sink interface {
	// WriteFailure records one failure. Implementations must be safe for
	// concurrent use.
	WriteFailure(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

// WriteFailure implements Sink.
func (f SinkFunc) WriteFailure(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// LogSink writes failure records as zerolog events.
type LogSink struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLogSink creates a sink that logs at warn level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger, level: zerolog.WarnLevel}
}

// WithLevel returns a copy of the sink logging at level.
func (s *LogSink) WithLevel(level zerolog.Level) *LogSink {
	cp := *s
	cp.level = level
	return &cp
}

// WriteFailure implements Sink.
func (s *LogSink) WriteFailure(_ context.Context, rec Record) error {
	s.logger.WithLevel(s.level).
		Str("run_id", rec.RunID).
		Str("stage", rec.Stage).
		Int("stage_index", rec.StageIndex).
		Int("item", rec.Index).
		Str("strategy", rec.Strategy).
		Str("failure", rec.Message()).
		Msg("pipeline error (ignored)")
	return nil
}

// MemorySink keeps every record in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteFailure implements Sink.
func (s *MemorySink) WriteFailure(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of the records written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records written so far.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Reset discards all records.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

type multiSink []Sink

// Multi returns a sink that writes every record to each of sinks. All sinks
// are attempted; their errors are joined.
func Multi(sinks ...Sink) Sink {
	flat := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			flat = append(flat, s)
		}
	}
	return flat
}

func (m multiSink) WriteFailure(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFailure(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) WriteFailure(context.Context, Record) error { return nil }

// Nop returns a sink that discards every record.
func Nop() Sink {
	return nopSink{}
}

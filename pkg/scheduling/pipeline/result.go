package pipeline

import (
	"time"
)

// Status is the final state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result represents the outcome of a pipeline run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string

	// Input is the initial item collection
	Input []any

	// Output is the final item collection. It is nil unless Status is
	// StatusSucceeded.
	Output []any

	// Error is the fatal error or cancellation that ended the run, if any
	Error error

	Status Status

	// Duration is the total execution time
	Duration time.Duration

	// StageResults contains one entry per stage that started
	StageResults []StageResult

	StartTime time.Time
	EndTime   time.Time
}

// StageResult represents the result of a single stage execution.
type StageResult struct {
	Name  string
	Index int
	Kind  StageKind

	// Strategy names the strategy applied, empty for infallible stages.
	Strategy string

	Items    int
	Failures int
	Output   int

	// Error is the fatal error raised by this stage, if any
	Error error

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// StageInfo is passed to OnStageStart.
type StageInfo struct {
	RunID string
	Name  string
	Index int
	Kind  StageKind
	Items int
}

// Stats holds executor statistics across runs.
type Stats struct {
	TotalRuns       int64
	SucceededRuns   int64
	FailedRuns      int64
	CancelledRuns   int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	StageStats      map[string]StageStats
	LastRunAt       time.Time
}

// StageStats holds statistics for stages sharing a name.
type StageStats struct {
	Name            string
	ExecutionCount  int64
	ErrorCount      int64
	ItemsIn         int64
	ItemsOut        int64
	Failures        int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

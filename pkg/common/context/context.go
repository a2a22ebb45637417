// Package context carries pipeline run metadata through context.Context so
// that sinks, strategies and transformations can attribute their work to a
// run and a stage without extra parameters.
package context

import (
	"context"
)

type contextKey string

const (
	runIDKey      contextKey = "pipex.run_id"
	stageKey      contextKey = "pipex.stage"
	stageIndexKey contextKey = "pipex.stage_index"
)

// WithRunID returns a copy of ctx that carries the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run identifier stored in ctx, or "" if none.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// WithStage returns a copy of ctx that carries the name and position of the
// stage currently executing.
func WithStage(ctx context.Context, name string, index int) context.Context {
	ctx = context.WithValue(ctx, stageKey, name)
	return context.WithValue(ctx, stageIndexKey, index)
}

// Stage returns the stage name and index stored in ctx. The index is -1 when
// no stage is recorded.
func Stage(ctx context.Context) (string, int) {
	name, _ := ctx.Value(stageKey).(string)
	idx, ok := ctx.Value(stageIndexKey).(int)
	if !ok {
		idx = -1
	}
	return name, idx
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Package store persists the ingest run log: one row per run with its
// counters and warnings, plus the skip entries it recorded.
package store

import (
	"context"

	"github.com/sells-group/holdings-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// RunResult is what a finished run records.
type RunResult struct {
	Stats    model.RunStats
	Skips    []model.SkipEntry
	Warnings []model.Warning
}

// RunStore defines the run log persistence interface.
type RunStore interface {
	StartRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, result RunResult) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListSkips(ctx context.Context, runID string) ([]model.SkipEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 20

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

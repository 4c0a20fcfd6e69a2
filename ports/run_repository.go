package ports

import (
	"context"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
)

// RunFilters for listing runs
type RunFilters struct {
	Limit  int
	Offset int
}

// RunRepository persists analysis run summaries
type RunRepository interface {
	// SaveRun stores a finished run; saving the same ID twice replaces it
	SaveRun(ctx context.Context, run *gsa.RunSummary) error

	// GetRun returns core.ErrNotFound when the run does not exist
	GetRun(ctx context.Context, id core.RunID) (*gsa.RunSummary, error)

	// ListRuns returns runs newest first
	ListRuns(ctx context.Context, filters RunFilters) ([]gsa.RunSummary, error)
}

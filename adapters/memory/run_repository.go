// Package memory keeps run summaries in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/ports"
)

// RunRepository implements ports.RunRepository with a map.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]gsa.RunSummary
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[core.RunID]gsa.RunSummary)}
}

func (r *RunRepository) SaveRun(ctx context.Context, run *gsa.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[core.RunID(run.ID)] = *run
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id core.RunID) (*gsa.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	return &run, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]gsa.RunSummary, error) {
	r.mu.RLock()
	results := make([]gsa.RunSummary, 0, len(r.runs))
	for _, run := range r.runs {
		results = append(results, run)
	}
	r.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].StartedAt.Equal(results[j].StartedAt) {
			return results[i].StartedAt.After(results[j].StartedAt)
		}
		return results[i].ID > results[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(results) {
			return []gsa.RunSummary{}, nil
		}
		results = results[filters.Offset:]
	}
	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results, nil
}

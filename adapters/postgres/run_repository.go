// Package postgres persists run summaries in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/internal/errors"
	"gosobol/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements ports.RunRepository. The full summary is
// kept as JSONB; the indexed columns serve listing.
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	ID      string `db:"id"`
	Summary []byte `db:"summary"`
}

func (r runRow) decode() (*gsa.RunSummary, error) {
	var s gsa.RunSummary
	if err := json.Unmarshal(r.Summary, &s); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", r.ID)
	}
	return &s, nil
}

// SaveRun upserts a run summary
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *gsa.RunSummary) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "encode run summary")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, scheme, base_samples, rows, fingerprint, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			scheme = EXCLUDED.scheme,
			base_samples = EXCLUDED.base_samples,
			rows = EXCLUDED.rows,
			fingerprint = EXCLUDED.fingerprint,
			summary = EXCLUDED.summary
	`, run.ID, run.StartedAt, run.FinishedAt, string(run.Scheme), run.BaseSamples, run.Rows, run.Fingerprint, string(payload))
	if err != nil {
		return errors.DatabaseError("failed to save run", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*gsa.RunSummary, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, summary
		FROM runs
		WHERE id = $1
	`, id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("run", id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return row.decode()
}

// ListRuns returns runs newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, filters ports.RunFilters) ([]gsa.RunSummary, error) {
	query := `
		SELECT id, summary
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []interface{}{}
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += " LIMIT $1"
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		if filters.Limit > 0 {
			query += " OFFSET $2"
		} else {
			query += " OFFSET $1"
		}
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	runs := make([]gsa.RunSummary, 0, len(rows))
	for _, row := range rows {
		s, err := row.decode()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *s)
	}
	return runs, nil
}

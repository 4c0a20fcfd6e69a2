// Package sqlite keeps run summaries in a local SQLite file, for CLI use
// without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/internal/errors"
	"gosobol/ports"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	summary     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC, id DESC);
`

// RunStore implements ports.RunRepository on SQLite.
type RunStore struct {
	db *sqlx.DB
}

var _ ports.RunRepository = (*RunStore)(nil)

// Open opens or creates the store at path, creating its directory.
func Open(path string) (*RunStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.Get(&v, "SELECT version FROM schema_version LIMIT 1")
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) SaveRun(ctx context.Context, run *gsa.RunSummary) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "encode run summary")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, fingerprint, summary) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			fingerprint = excluded.fingerprint,
			summary = excluded.summary
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Fingerprint, string(payload))
	if err != nil {
		return errors.DatabaseError("failed to save run", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id core.RunID) (*gsa.RunSummary, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, "SELECT summary FROM runs WHERE id = ?", id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("run", id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	var run gsa.RunSummary
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", id)
	}
	return &run, nil
}

// ListRuns returns runs newest first. RFC 3339 timestamps in UTC sort
// lexically.
func (s *RunStore) ListRuns(ctx context.Context, filters ports.RunFilters) ([]gsa.RunSummary, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = -1
	}
	var payloads []string
	err := s.db.SelectContext(ctx, &payloads,
		"SELECT summary FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?", limit, filters.Offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	runs := make([]gsa.RunSummary, 0, len(payloads))
	for _, p := range payloads {
		var run gsa.RunSummary
		if err := json.Unmarshal([]byte(p), &run); err != nil {
			return nil, errors.Wrap(err, "decode run")
		}
		runs = append(runs, run)
	}
	return runs, nil
}

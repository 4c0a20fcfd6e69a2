// Package migration owns the Postgres schema for stored runs.
package migration

import (
	"context"

	"gosobol/internal/errors"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is bumped whenever a step is appended.
const SchemaVersion = "1.1.0"

type step struct {
	name string
	sql  []string
}

// Steps run in order and are all idempotent, so Run is safe on every start.
var steps = []step{
	{name: "create runs table", sql: []string{`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
			scheme VARCHAR(32) NOT NULL,
			base_samples INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			summary JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`}},
	{name: "add fingerprint column", sql: []string{`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'runs' AND column_name = 'fingerprint'
			) THEN
				ALTER TABLE runs ADD COLUMN fingerprint VARCHAR(64) NOT NULL DEFAULT '';
			END IF;
		END $$`}},
	{name: "create indexes", sql: []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint)`,
	}},
}

type MigrationRunner struct{}

func NewRunner() *MigrationRunner {
	return &MigrationRunner{}
}

func (r *MigrationRunner) Version() string {
	return SchemaVersion
}

// Run applies every step, stopping at the first failure.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, s := range steps {
		for _, stmt := range s.sql {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "migration step %q", s.name)
			}
		}
	}
	return nil
}

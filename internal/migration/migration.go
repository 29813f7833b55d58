package migration

import (
	"context"

	"loostaar/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement
// is idempotent so Run is safe on every startup.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create loo_runs table")
	}

	if err := r.createRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create loo_rows table")
	}

	if err := r.createWarningsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create loo_warnings table")
	}

	if err := r.addFrequencyColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add frequency columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loo_runs (
			id UUID PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			null_model TEXT NOT NULL DEFAULT '',
			fingerprint VARCHAR(64) NOT NULL DEFAULT '',
			baseline_p_value DOUBLE PRECISION NOT NULL,
			num_samples INTEGER NOT NULL,
			parameters JSONB NOT NULL DEFAULT '{}',
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loo_rows (
			run_id UUID NOT NULL REFERENCES loo_runs(id) ON DELETE CASCADE,
			column_index INTEGER NOT NULL,
			variant_id TEXT NOT NULL,
			baseline_p_value DOUBLE PRECISION NOT NULL,
			loo_p_value DOUBLE PRECISION,
			delta_log10_p DOUBLE PRECISION,
			position DOUBLE PRECISION,
			PRIMARY KEY (run_id, column_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createWarningsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loo_warnings (
			run_id UUID NOT NULL REFERENCES loo_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			variant_id TEXT NOT NULL DEFAULT '',
			variant_index INTEGER NOT NULL,
			kind VARCHAR(50) NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, seq)
		)
	`)
	return err
}

// addFrequencyColumns upgrades 1.0.0 schemas in place
func (r *MigrationRunner) addFrequencyColumns(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`ALTER TABLE loo_runs ADD COLUMN IF NOT EXISTS rare_variants INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE loo_rows ADD COLUMN IF NOT EXISTS maf DOUBLE PRECISION`,
		`ALTER TABLE loo_rows ADD COLUMN IF NOT EXISTS rare_variants_without INTEGER`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_loo_runs_started_at ON loo_runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_loo_runs_fingerprint ON loo_runs(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_loo_rows_variant ON loo_rows(variant_id)`,
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

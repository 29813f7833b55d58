package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"loostaar/domain/core"
	"loostaar/domain/loo"
	"loostaar/ports"
)

// RunRepositoryImpl implements ports.RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// maxBindParams is PostgreSQL's limit on parameters per statement
const maxBindParams = 65535

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRecord struct {
	ID             string    `db:"id"`
	Label          string    `db:"label"`
	NullModel      string    `db:"null_model"`
	Fingerprint    string    `db:"fingerprint"`
	BaselinePValue float64   `db:"baseline_p_value"`
	NumSamples     int       `db:"num_samples"`
	RareVariants   int       `db:"rare_variants"`
	Parameters     []byte    `db:"parameters"`
	StartedAt      time.Time `db:"started_at"`
	FinishedAt     time.Time `db:"finished_at"`
}

type rowRecord struct {
	RunID          string   `db:"run_id"`
	ColumnIndex    int      `db:"column_index"`
	VariantID      string   `db:"variant_id"`
	BaselinePValue float64  `db:"baseline_p_value"`
	LOOPValue      *float64 `db:"loo_p_value"`
	DeltaLog10P    *float64 `db:"delta_log10_p"`
	Position       *float64 `db:"position"`
	MAF            *float64 `db:"maf"`
	RareWithout    *int     `db:"rare_variants_without"`
}

const (
	rowParams     = 9
	warningParams = 6
)

type warningRecord struct {
	RunID        string `db:"run_id"`
	Seq          int    `db:"seq"`
	VariantID    string `db:"variant_id"`
	VariantIndex int    `db:"variant_index"`
	Kind         string `db:"kind"`
	Message      string `db:"message"`
}

type summaryRecord struct {
	RunID          string    `db:"run_id"`
	Label          string    `db:"label"`
	BaselinePValue float64   `db:"baseline_p_value"`
	Variants       int       `db:"variants"`
	Missing        int       `db:"missing"`
	StartedAt      time.Time `db:"started_at"`
}

func toRecords(t *loo.Table) (runRecord, []rowRecord, []warningRecord, error) {
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return runRecord{}, nil, nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	id := t.RunID.String()
	run := runRecord{
		ID:             id,
		Label:          t.Label,
		NullModel:      t.NullModel,
		Fingerprint:    string(t.Fingerprint),
		BaselinePValue: t.BaselinePValue,
		NumSamples:     t.NumSamples,
		RareVariants:   t.RareVariants,
		Parameters:     params,
		StartedAt:      t.StartedAt.Time(),
		FinishedAt:     t.FinishedAt.Time(),
	}
	freqs := make(map[core.VariantID]loo.VariantFrequency, len(t.Frequencies))
	for _, f := range t.Frequencies {
		freqs[f.VariantID] = f
	}
	rows := make([]rowRecord, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = rowRecord{
			RunID:          id,
			ColumnIndex:    i,
			VariantID:      r.VariantID.String(),
			BaselinePValue: r.BaselinePValue,
			LOOPValue:      r.LOOPValue,
			DeltaLog10P:    r.DeltaLog10P,
		}
		if pos, ok := t.Positions[r.VariantID]; ok {
			rows[i].Position = &pos
		}
		if f, ok := freqs[r.VariantID]; ok {
			maf, without := f.MAF, f.RareVariantsWithout
			rows[i].MAF = &maf
			rows[i].RareWithout = &without
		}
	}
	warnings := make([]warningRecord, len(t.Warnings))
	for i, w := range t.Warnings {
		warnings[i] = warningRecord{
			RunID:        id,
			Seq:          i,
			VariantID:    w.VariantID.String(),
			VariantIndex: w.VariantIndex,
			Kind:         string(w.Kind),
			Message:      w.Message,
		}
	}
	return run, rows, warnings, nil
}

func fromRecords(run runRecord, rows []rowRecord, warnings []warningRecord) (*loo.Table, error) {
	t := &loo.Table{
		RunID:          core.RunID(run.ID),
		Label:          run.Label,
		NullModel:      run.NullModel,
		Fingerprint:    core.Hash(run.Fingerprint),
		BaselinePValue: run.BaselinePValue,
		NumSamples:     run.NumSamples,
		RareVariants:   run.RareVariants,
		StartedAt:      core.NewTimestamp(run.StartedAt.UTC()),
		FinishedAt:     core.NewTimestamp(run.FinishedAt.UTC()),
		Rows:           make([]loo.Row, len(rows)),
	}
	if len(run.Parameters) > 0 {
		if err := json.Unmarshal(run.Parameters, &t.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	for i, r := range rows {
		t.Rows[i] = loo.Row{
			VariantID:      core.VariantID(r.VariantID),
			BaselinePValue: r.BaselinePValue,
			LOOPValue:      r.LOOPValue,
			DeltaLog10P:    r.DeltaLog10P,
		}
		if r.Position != nil {
			if t.Positions == nil {
				t.Positions = make(map[core.VariantID]float64)
			}
			t.Positions[core.VariantID(r.VariantID)] = *r.Position
		}
		if r.MAF != nil && r.RareWithout != nil {
			t.Frequencies = append(t.Frequencies, loo.VariantFrequency{
				VariantID:           core.VariantID(r.VariantID),
				MAF:                 *r.MAF,
				RareVariantsWithout: *r.RareWithout,
			})
		}
	}
	for _, w := range warnings {
		t.Warnings = append(t.Warnings, loo.Warning{
			VariantID:    core.VariantID(w.VariantID),
			VariantIndex: w.VariantIndex,
			Kind:         loo.WarningKind(w.Kind),
			Message:      w.Message,
		})
	}
	return t, nil
}

// Save stores a table, replacing any earlier copy with the same run ID
func (r *RunRepositoryImpl) Save(ctx context.Context, table *loo.Table) error {
	run, rows, warnings, err := toRecords(table)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM loo_runs WHERE id = $1`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO loo_runs (
			id, label, null_model, fingerprint, baseline_p_value,
			num_samples, rare_variants, parameters, started_at, finished_at
		) VALUES (
			:id, :label, :null_model, :fingerprint, :baseline_p_value,
			:num_samples, :rare_variants, :parameters, :started_at, :finished_at
		)`, run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	err = insertBatches(ctx, tx, `
		INSERT INTO loo_rows (
			run_id, column_index, variant_id, baseline_p_value, loo_p_value,
			delta_log10_p, position, maf, rare_variants_without
		) VALUES (
			:run_id, :column_index, :variant_id, :baseline_p_value, :loo_p_value,
			:delta_log10_p, :position, :maf, :rare_variants_without
		)`, rows, rowParams)
	if err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}

	err = insertBatches(ctx, tx, `
		INSERT INTO loo_warnings (
			run_id, seq, variant_id, variant_index, kind, message
		) VALUES (
			:run_id, :seq, :variant_id, :variant_index, :kind, :message
		)`, warnings, warningParams)
	if err != nil {
		return fmt.Errorf("failed to insert warnings: %w", err)
	}

	return tx.Commit()
}

// batches splits n records into [start, end) ranges whose bind parameters
// fit in one statement
func batches(n, paramsPerRecord int) [][2]int {
	size := maxBindParams / paramsPerRecord
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

func insertBatches[T any](ctx context.Context, tx *sqlx.Tx, query string, records []T, paramsPerRecord int) error {
	for _, b := range batches(len(records), paramsPerRecord) {
		if _, err := tx.NamedExecContext(ctx, query, records[b[0]:b[1]]); err != nil {
			return fmt.Errorf("records %d-%d: %w", b[0], b[1]-1, err)
		}
	}
	return nil
}

// Get loads a table with its rows in column order
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*loo.Table, error) {
	var run runRecord
	err := r.db.GetContext(ctx, &run, `
		SELECT id, label, null_model, fingerprint, baseline_p_value,
			   num_samples, rare_variants, parameters, started_at, finished_at
		FROM loo_runs
		WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewRunNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var rows []rowRecord
	err = r.db.SelectContext(ctx, &rows, `
		SELECT run_id, column_index, variant_id, baseline_p_value, loo_p_value,
			   delta_log10_p, position, maf, rare_variants_without
		FROM loo_rows
		WHERE run_id = $1
		ORDER BY column_index`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var warnings []warningRecord
	err = r.db.SelectContext(ctx, &warnings, `
		SELECT run_id, seq, variant_id, variant_index, kind, message
		FROM loo_warnings
		WHERE run_id = $1
		ORDER BY seq`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get warnings: %w", err)
	}

	return fromRecords(run, rows, warnings)
}

// List returns run summaries, newest first
func (r *RunRepositoryImpl) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	var records []summaryRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT r.id AS run_id, r.label, r.baseline_p_value, r.started_at,
			   COUNT(x.column_index) AS variants,
			   COUNT(x.column_index) FILTER (WHERE x.loo_p_value IS NULL) AS missing
		FROM loo_runs r
		LEFT JOIN loo_rows x ON x.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]ports.RunSummary, len(records))
	for i, rec := range records {
		summaries[i] = ports.RunSummary{
			RunID:          core.RunID(rec.RunID),
			Label:          rec.Label,
			BaselinePValue: rec.BaselinePValue,
			Variants:       rec.Variants,
			Missing:        rec.Missing,
			StartedAt:      core.NewTimestamp(rec.StartedAt.UTC()),
		}
	}
	return summaries, nil
}

// Delete removes a run and, by cascade, its rows and warnings
func (r *RunRepositoryImpl) Delete(ctx context.Context, id core.RunID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM loo_runs WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return core.NewRunNotFoundError(id)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loostaar/domain/core"
	"loostaar/domain/loo"
	"loostaar/internal/migration"
)

func sampleTable() *loo.Table {
	started := core.NewTimestamp(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	baseline := 0.005431518
	return &loo.Table{
		RunID:          core.NewRunID(),
		Label:          "GENE1 missense",
		NullModel:      "obj_nullmodel.rds",
		Fingerprint:    core.NewHash([]byte("matrix")),
		BaselinePValue: baseline,
		NumSamples:     5000,
		Parameters: loo.Parameters{
			MAFCutoff:            0.01,
			RareVariantThreshold: 2,
			Concurrency:          4,
			OmnibusPolicy:        "first",
			Timeout:              time.Minute,
		},
		Rows: []loo.Row{
			loo.NewRow("var1", baseline, loo.Float(0.107018465)),
			loo.NewRow("var2", baseline, nil),
		},
		Warnings: []loo.Warning{
			{VariantID: "var2", VariantIndex: 1, Kind: loo.WarningTestFailed, Message: "R error"},
		},
		Positions:    map[core.VariantID]float64{"var1": 1000, "var2": 1042},
		RareVariants: 2,
		Frequencies: []loo.VariantFrequency{
			{VariantID: "var1", MAF: 0.0021, RareVariantsWithout: 1},
			{VariantID: "var2", MAF: 0.0009, RareVariantsWithout: 1},
		},
		StartedAt:  started,
		FinishedAt: core.NewTimestamp(started.Time().Add(90 * time.Second)),
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	want := sampleTable()

	run, rows, warnings, err := toRecords(want)
	require.NoError(t, err)
	assert.Equal(t, 1, rows[1].ColumnIndex)
	assert.Nil(t, rows[1].LOOPValue)
	assert.Equal(t, want.RunID.String(), warnings[0].RunID)

	got, err := fromRecords(run, rows, warnings)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBatchesStayUnderBindLimit(t *testing.T) {
	tests := []struct {
		n, params int
		want      int
	}{
		{0, rowParams, 0},
		{1, rowParams, 1},
		{maxBindParams / rowParams, rowParams, 1},
		{maxBindParams/rowParams + 1, rowParams, 2},
		{20000, rowParams, 3},
		{20000, warningParams, 2},
	}
	for _, tt := range tests {
		got := batches(tt.n, tt.params)
		require.Len(t, got, tt.want, "n=%d params=%d", tt.n, tt.params)

		next := 0
		for _, b := range got {
			assert.Equal(t, next, b[0])
			assert.LessOrEqual(t, (b[1]-b[0])*tt.params, maxBindParams)
			next = b[1]
		}
		assert.Equal(t, tt.n, next)
	}
}

// openTestDB connects to TEST_DATABASE_URL and migrates it, or skips.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestRunRepository_Postgres(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	table := sampleTable()
	require.NoError(t, repo.Save(ctx, table))
	// saving again replaces rather than duplicates
	require.NoError(t, repo.Save(ctx, table))

	got, err := repo.Get(ctx, table.RunID)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, got.Rows)
	assert.Equal(t, table.Warnings, got.Warnings)
	assert.Equal(t, table.Parameters, got.Parameters)
	assert.Equal(t, table.Positions, got.Positions)

	summaries, err := repo.List(ctx, 500, 0)
	require.NoError(t, err)
	var found bool
	for _, s := range summaries {
		if s.RunID == table.RunID {
			found = true
			assert.Equal(t, 2, s.Variants)
			assert.Equal(t, 1, s.Missing)
		}
	}
	assert.True(t, found)

	assert.Equal(t, table.Frequencies, got.Frequencies)
	assert.Equal(t, table.RareVariants, got.RareVariants)

	require.NoError(t, repo.Delete(ctx, table.RunID))
	_, err = repo.Get(ctx, table.RunID)
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
	assert.True(t, core.IsNotFoundError(repo.Delete(ctx, table.RunID)))
}

func TestRunRepository_PostgresLargeRun(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	table := sampleTable()
	table.Rows = nil
	table.Warnings = nil
	table.Positions = nil
	table.Frequencies = nil
	for i := 0; i < 12000; i++ {
		id := core.VariantID(fmt.Sprintf("v%d", i))
		table.Rows = append(table.Rows, loo.NewRow(id, table.BaselinePValue, loo.Float(0.01)))
		table.Warnings = append(table.Warnings, loo.Warning{VariantID: id, VariantIndex: i, Kind: loo.WarningFewRareVariants})
	}
	require.NoError(t, repo.Save(ctx, table))
	t.Cleanup(func() { repo.Delete(context.Background(), table.RunID) })

	got, err := repo.Get(ctx, table.RunID)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 12000)
	assert.Len(t, got.Warnings, 12000)
	assert.Equal(t, core.VariantID("v11999"), got.Rows[11999].VariantID)
}

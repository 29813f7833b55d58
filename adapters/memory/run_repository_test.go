package memory

import (
	"context"
	"errors"
	"testing"

	"loostaar/domain/core"
	"loostaar/domain/loo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(label string) *loo.Table {
	return &loo.Table{
		RunID:          core.NewRunID(),
		Label:          label,
		BaselinePValue: 0.01,
		Rows: []loo.Row{
			loo.NewRow("v1", 0.01, loo.Float(0.1)),
			loo.NewRow("v2", 0.01, nil),
		},
		StartedAt: core.Now(),
	}
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	table := newTable("gene-a")
	table.Frequencies = []loo.VariantFrequency{{VariantID: "v1", MAF: 0.004, RareVariantsWithout: 1}}

	require.NoError(t, repo.Save(ctx, table))

	// mutations after Save must not leak into the store
	*table.Rows[0].LOOPValue = 0.9
	table.Frequencies[0].MAF = 0.3

	got, err := repo.Get(ctx, table.RunID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, *got.Rows[0].LOOPValue)
	assert.Nil(t, got.Rows[1].LOOPValue)
	assert.Equal(t, "gene-a", got.Label)
	require.Len(t, got.Frequencies, 1)
	assert.Equal(t, 0.004, got.Frequencies[0].MAF)
}

func TestRunRepositoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()

	first := newTable("first")
	second := newTable("second")
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.RunID, list[0].RunID)
	assert.Equal(t, 2, list[0].Variants)
	assert.Equal(t, 1, list[0].Missing)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.RunID, page[0].RunID)

	require.NoError(t, repo.Delete(ctx, first.RunID))
	_, err = repo.Get(ctx, first.RunID)
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
	assert.True(t, core.IsNotFoundError(repo.Delete(ctx, first.RunID)))
}

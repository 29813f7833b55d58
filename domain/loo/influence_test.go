package loo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaLog10P(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		loo      *float64
		want     *float64
	}{
		{"driver", 0.005431518, Float(0.107018465), Float(-1.29454)},
		{"no-op variant", 0.005431518, Float(0.005431518), Float(0)},
		{"diluter", 0.01, Float(0.001), Float(1)},
		{"p equal to one", 0.1, Float(1), Float(-1)},
		{"missing loo", 0.1, nil, nil},
		{"zero loo", 0.1, Float(0), nil},
		{"negative loo", 0.1, Float(-0.2), nil},
		{"NaN loo", 0.1, Float(math.NaN()), nil},
		{"zero baseline", 0, Float(0.2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeltaLog10P(tt.baseline, tt.loo)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-5)
		})
	}
}

func TestNoOpVariantIsExactlyZero(t *testing.T) {
	d := DeltaLog10P(0.005431518, Float(0.005431518))
	require.NotNil(t, d)
	assert.Equal(t, 0.0, *d)
}

func TestRowRole(t *testing.T) {
	assert.Equal(t, RoleDriver, NewRow("a", 0.01, Float(0.1)).Role())
	assert.Equal(t, RoleDiluter, NewRow("b", 0.1, Float(0.01)).Role())
	assert.Equal(t, RoleDiluter, NewRow("c", 0.1, Float(0.1)).Role())
	assert.Equal(t, Role(""), NewRow("d", 0.1, nil).Role())
}

func TestAssemblePreservesOrder(t *testing.T) {
	first := []Row{NewRow("z", 0.1, Float(0.2)), NewRow("a", 0.1, nil)}
	second := []Row{NewRow("m", 0.1, Float(0.05)), NewRow("a", 0.1, Float(0.3))}

	rows := Assemble(first, second)

	require.Len(t, rows, 4)
	ids := []string{"z", "a", "m", "a"}
	for i, r := range rows {
		assert.Equal(t, ids[i], r.VariantID.String())
	}

	rows[0].BaselinePValue = 9
	assert.Equal(t, 0.1, first[0].BaselinePValue, "Assemble must copy rows")
}

func TestSummarize(t *testing.T) {
	table := &Table{
		BaselinePValue: 0.01,
		Rows: []Row{
			NewRow("v1", 0.01, Float(0.1)),   // -1
			NewRow("v2", 0.01, Float(0.001)), // +1
			NewRow("v3", 0.01, Float(0.01)),  // 0
			NewRow("v4", 0.01, nil),
		},
	}

	s := Summarize(table)
	assert.Equal(t, 4, s.Variants)
	assert.Equal(t, 3, s.Scored)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1, s.Drivers)
	assert.Equal(t, 2, s.Diluters)
	assert.InDelta(t, 0, s.MeanDelta, 1e-12)
	assert.InDelta(t, 0, s.MedianDelta, 1e-12)
	assert.InDelta(t, 1, s.MaxAbsDelta, 1e-12)
	assert.Equal(t, "v1", s.TopDriver)
	assert.Equal(t, "v2", s.TopDiluter)
	assert.Equal(t, 1, table.MissingCount())

	ranked := Ranked(table)
	require.Len(t, ranked, 3)
	assert.Equal(t, "v1", ranked[0].VariantID.String())
	assert.Equal(t, "v2", ranked[1].VariantID.String())
	assert.Equal(t, "v3", ranked[2].VariantID.String())
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&Table{Rows: []Row{NewRow("only", 0.2, nil)}})
	assert.Equal(t, 0, s.Scored)
	assert.Equal(t, 1, s.Missing)
	assert.Empty(t, s.TopDriver)
}

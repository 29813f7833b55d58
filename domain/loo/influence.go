package loo

import (
	"math"

	"loostaar/domain/core"
)

// DeltaLog10P returns log10(baseline) - log10(loo). It is undefined (nil)
// when either value is missing, non-finite or non-positive.
func DeltaLog10P(baseline float64, loo *float64) *float64 {
	if loo == nil || !positive(baseline) || !positive(*loo) {
		return nil
	}
	d := math.Log10(baseline) - math.Log10(*loo)
	return &d
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// NewRow builds a row and derives its influence score
func NewRow(id core.VariantID, baseline float64, loo *float64) Row {
	return Row{
		VariantID:      id,
		BaselinePValue: baseline,
		LOOPValue:      loo,
		DeltaLog10P:    DeltaLog10P(baseline, loo),
	}
}

// Assemble concatenates rows in the order given. Rows are copied; nothing is
// sorted, filtered or deduplicated.
func Assemble(rows ...[]Row) []Row {
	n := 0
	for _, part := range rows {
		n += len(part)
	}
	out := make([]Row, 0, n)
	for _, part := range rows {
		out = append(out, part...)
	}
	return out
}

// Float returns a pointer to v, for building rows by hand
func Float(v float64) *float64 {
	return &v
}

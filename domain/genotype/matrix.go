package genotype

import (
	"fmt"
	"math"
	"strings"

	"loostaar/domain/core"
)

// MaxDosage is the largest allowed alternate-allele dosage (diploid)
const MaxDosage = 2.0

// MinSamples is the smallest cohort the association test accepts
const MinSamples = 2

// Matrix is a dense samples × variants dosage matrix.
// Data is row-major: Data[sample][variant]. A Matrix is never mutated after
// construction; column exclusion produces a new Matrix.
type Matrix struct {
	Data       [][]float64
	SampleIDs  []core.SampleID // optional; empty means unnamed samples
	VariantIDs []core.VariantID
}

// NewMatrix builds a matrix from rows and column identifiers
func NewMatrix(variantIDs []core.VariantID, rows [][]float64) *Matrix {
	return &Matrix{
		Data:       rows,
		VariantIDs: variantIDs,
	}
}

// WithSamples attaches sample identifiers
func (m *Matrix) WithSamples(sampleIDs []core.SampleID) *Matrix {
	m.SampleIDs = sampleIDs
	return m
}

// NumSamples returns the row count
func (m *Matrix) NumSamples() int {
	return len(m.Data)
}

// NumVariants returns the column count
func (m *Matrix) NumVariants() int {
	return len(m.VariantIDs)
}

// Column returns a copy of the dosages for variant j
func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, len(m.Data))
	for i, row := range m.Data {
		col[i] = row[j]
	}
	return col
}

// Validate checks the structural preconditions of a leave-one-out analysis.
// It returns an error wrapping core.ErrInvalidInput naming the first
// violated precondition.
func (m *Matrix) Validate() error {
	if m == nil {
		return core.NewInvalidInputError("matrix is nil")
	}
	if len(m.VariantIDs) == 0 {
		return core.NewInvalidInputError("variant identifiers are missing")
	}

	seen := make(map[core.VariantID]int, len(m.VariantIDs))
	for j, id := range m.VariantIDs {
		if strings.TrimSpace(id.String()) == "" {
			return core.NewInvalidInputError("variant identifier at column %d is empty", j)
		}
		if prev, dup := seen[id]; dup {
			return core.NewInvalidInputError("variant identifier %q duplicated at columns %d and %d", id, prev, j)
		}
		seen[id] = j
	}

	if len(m.Data) < MinSamples {
		return core.NewInvalidInputError("row count %d < %d", len(m.Data), MinSamples)
	}

	if len(m.SampleIDs) > 0 {
		if len(m.SampleIDs) != len(m.Data) {
			return core.NewInvalidInputError("%d sample identifiers for %d rows", len(m.SampleIDs), len(m.Data))
		}
		samples := make(map[core.SampleID]struct{}, len(m.SampleIDs))
		for i, id := range m.SampleIDs {
			if _, dup := samples[id]; dup {
				return core.NewInvalidInputError("sample identifier %q duplicated at row %d", id, i)
			}
			samples[id] = struct{}{}
		}
	}

	for i, row := range m.Data {
		if len(row) != len(m.VariantIDs) {
			return core.NewInvalidInputError("row %d has %d entries, expected %d", i, len(row), len(m.VariantIDs))
		}
		for j, v := range row {
			if err := checkDosage(v); err != nil {
				return core.NewInvalidInputError("entry (%d, %s): %v", i, m.VariantIDs[j], err)
			}
		}
	}

	return nil
}

func checkDosage(v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return fmt.Errorf("non-numeric dosage %v", v)
	case v < 0:
		return fmt.Errorf("negative dosage %v", v)
	case v > MaxDosage:
		return fmt.Errorf("dosage %v exceeds %v", v, MaxDosage)
	}
	return nil
}

// Exclude returns a new matrix containing every column except j.
// Rows are freshly allocated so concurrent callers never share backing arrays.
func (m *Matrix) Exclude(j int) (*Matrix, error) {
	if j < 0 || j >= len(m.VariantIDs) {
		return nil, fmt.Errorf("column index %d out of range [0, %d)", j, len(m.VariantIDs))
	}

	n := len(m.VariantIDs) - 1
	ids := make([]core.VariantID, 0, n)
	ids = append(ids, m.VariantIDs[:j]...)
	ids = append(ids, m.VariantIDs[j+1:]...)

	rows := make([][]float64, len(m.Data))
	for i, row := range m.Data {
		r := make([]float64, 0, n)
		r = append(r, row[:j]...)
		r = append(r, row[j+1:]...)
		rows[i] = r
	}

	return &Matrix{Data: rows, SampleIDs: m.SampleIDs, VariantIDs: ids}, nil
}

// Fingerprint hashes identifiers and dosages so identical inputs can be
// recognised across runs.
func (m *Matrix) Fingerprint() core.Hash {
	var h core.HashBuilder
	h.WriteInt(len(m.VariantIDs))
	for _, id := range m.VariantIDs {
		h.WriteString(id.String())
	}
	h.WriteInt(len(m.Data))
	for _, row := range m.Data {
		for _, v := range row {
			h.WriteFloat(v)
		}
	}
	return h.Sum()
}

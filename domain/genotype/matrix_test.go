package genotype

import (
	"errors"
	"math"
	"testing"

	"loostaar/domain/core"
)

func ids(names ...string) []core.VariantID {
	out := make([]core.VariantID, len(names))
	for i, n := range names {
		out[i] = core.VariantID(n)
	}
	return out
}

func TestMatrixValidate(t *testing.T) {
	tests := []struct {
		name    string
		matrix  *Matrix
		wantErr bool
	}{
		{
			name:   "valid",
			matrix: NewMatrix(ids("a", "b"), [][]float64{{0, 1}, {2, 0}}),
		},
		{
			name:    "nil matrix",
			matrix:  nil,
			wantErr: true,
		},
		{
			name:    "missing identifiers",
			matrix:  NewMatrix(nil, [][]float64{{0}, {1}}),
			wantErr: true,
		},
		{
			name:    "empty identifier",
			matrix:  NewMatrix(ids("a", " "), [][]float64{{0, 1}, {1, 0}}),
			wantErr: true,
		},
		{
			name:    "duplicate identifier",
			matrix:  NewMatrix(ids("a", "a"), [][]float64{{0, 1}, {1, 0}}),
			wantErr: true,
		},
		{
			name:    "single sample",
			matrix:  NewMatrix(ids("a"), [][]float64{{1}}),
			wantErr: true,
		},
		{
			name:    "ragged row",
			matrix:  NewMatrix(ids("a", "b"), [][]float64{{0, 1}, {1}}),
			wantErr: true,
		},
		{
			name:    "NaN entry",
			matrix:  NewMatrix(ids("a"), [][]float64{{0}, {math.NaN()}}),
			wantErr: true,
		},
		{
			name:    "negative dosage",
			matrix:  NewMatrix(ids("a"), [][]float64{{0}, {-1}}),
			wantErr: true,
		},
		{
			name:    "dosage above two",
			matrix:  NewMatrix(ids("a"), [][]float64{{0}, {3}}),
			wantErr: true,
		},
		{
			name: "duplicate sample",
			matrix: NewMatrix(ids("a"), [][]float64{{0}, {1}}).
				WithSamples([]core.SampleID{"s1", "s1"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.matrix.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestMatrixExcludeDoesNotAlias(t *testing.T) {
	m := NewMatrix(ids("a", "b", "c"), [][]float64{{0, 1, 2}, {2, 1, 0}})

	view, err := m.Exclude(1)
	if err != nil {
		t.Fatalf("Exclude: %v", err)
	}

	if got := view.NumVariants(); got != 2 {
		t.Fatalf("expected 2 variants, got %d", got)
	}
	if view.VariantIDs[0] != "a" || view.VariantIDs[1] != "c" {
		t.Errorf("unexpected columns %v", view.VariantIDs)
	}
	if view.Data[0][1] != 2 || view.Data[1][1] != 0 {
		t.Errorf("unexpected data %v", view.Data)
	}

	view.Data[0][0] = 9
	view.VariantIDs[0] = "z"
	if m.Data[0][0] != 0 || m.VariantIDs[0] != "a" {
		t.Error("exclusion view aliases the original matrix")
	}
	if m.NumVariants() != 3 {
		t.Error("original matrix was modified")
	}
}

func TestMatrixExcludeLastColumn(t *testing.T) {
	m := NewMatrix(ids("only"), [][]float64{{1}, {0}})
	view, err := m.Exclude(0)
	if err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if view.NumVariants() != 0 {
		t.Errorf("expected empty view, got %d columns", view.NumVariants())
	}
	if _, err := m.Exclude(1); err == nil {
		t.Error("expected out of range error")
	}
}

func TestMatrixFingerprint(t *testing.T) {
	a := NewMatrix(ids("a", "b"), [][]float64{{0, 1}, {1, 0}})
	b := NewMatrix(ids("a", "b"), [][]float64{{0, 1}, {1, 0}})
	c := NewMatrix(ids("a", "b"), [][]float64{{0, 1}, {1, 1}})

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical matrices should share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different dosages should change the fingerprint")
	}
}

func TestMinorAlleleFrequencies(t *testing.T) {
	// 4 samples = 8 chromosomes
	m := NewMatrix(ids("rare", "common", "flipped"), [][]float64{
		{1, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 1},
	})

	mafs := m.MinorAlleleFrequencies()
	want := []float64{0.125, 0.5, 0.125}
	for j := range want {
		if math.Abs(mafs[j]-want[j]) > 1e-12 {
			t.Errorf("variant %s: maf %v, want %v", m.VariantIDs[j], mafs[j], want[j])
		}
	}

	if got, _ := m.RareCounts(0.2); got != 2 {
		t.Errorf("RareCounts(0.2) = %d, want 2", got)
	}
}

func TestRareCounts(t *testing.T) {
	m := NewMatrix(ids("rare", "common", "flipped", "absent"), [][]float64{
		{1, 1, 2, 0},
		{0, 1, 2, 0},
		{0, 1, 2, 0},
		{0, 1, 1, 0},
	})

	full, without := m.RareCounts(0.2)
	if full != 2 {
		t.Fatalf("full = %d, want 2", full)
	}
	want := []int{1, 2, 1, 2}
	for j := range want {
		if without[j] != want[j] {
			t.Errorf("without %s = %d, want %d", m.VariantIDs[j], without[j], want[j])
		}
		view, err := m.Exclude(j)
		if err != nil {
			t.Fatalf("Exclude(%d): %v", j, err)
		}
		if got, _ := view.RareCounts(0.2); got != without[j] {
			t.Errorf("view without %s has %d rare variants, RareCounts says %d", m.VariantIDs[j], got, without[j])
		}
	}
}

func TestPositionsMissing(t *testing.T) {
	p := Positions{"a": 100, "b": 50}

	missing := p.Missing(ids("a", "c", "d"))
	if len(missing) != 2 || missing[0] != "c" || missing[1] != "d" {
		t.Errorf("Missing = %v", missing)
	}
	if got := p.Missing(ids("b", "a")); len(got) != 0 {
		t.Errorf("Missing = %v, want none", got)
	}
}

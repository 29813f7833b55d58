package genotype

import (
	"gonum.org/v1/gonum/floats"
)

// AlleleCounts returns the alternate allele count of each variant
func (m *Matrix) AlleleCounts() []float64 {
	counts := make([]float64, m.NumVariants())
	for _, row := range m.Data {
		floats.Add(counts, row)
	}
	return counts
}

// MinorAlleleFrequencies returns min(p, 1-p) per variant, where p is the
// alternate allele frequency over 2N chromosomes.
func (m *Matrix) MinorAlleleFrequencies() []float64 {
	counts := m.AlleleCounts()
	if m.NumSamples() == 0 {
		return counts
	}
	floats.Scale(1/(MaxDosage*float64(m.NumSamples())), counts)
	for j, p := range counts {
		if p > 0.5 {
			counts[j] = 1 - p
		}
	}
	return counts
}

// IsRare reports whether a variant with the given minor allele frequency
// counts as rare under mafCutoff. Monomorphic variants never do.
func IsRare(maf, mafCutoff float64) bool {
	return maf > 0 && maf <= mafCutoff
}

// RareCounts returns the rare variant count of the full matrix and of each
// single-variant exclusion view, indexed by the excluded column. A variant's
// frequency does not depend on the other columns, so the views are never
// materialised.
func (m *Matrix) RareCounts(mafCutoff float64) (full int, without []int) {
	mafs := m.MinorAlleleFrequencies()
	for _, maf := range mafs {
		if IsRare(maf, mafCutoff) {
			full++
		}
	}
	without = make([]int, len(mafs))
	for j, maf := range mafs {
		without[j] = full
		if IsRare(maf, mafCutoff) {
			without[j]--
		}
	}
	return full, without
}

package loo

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Summary aggregates influence scores across a table
type Summary struct {
	Variants    int     `json:"variants"`
	Scored      int     `json:"scored"`
	Missing     int     `json:"missing"`
	Drivers     int     `json:"drivers"`
	Diluters    int     `json:"diluters"`
	MeanDelta   float64 `json:"mean_delta"`
	MedianDelta float64 `json:"median_delta"`
	StdDevDelta float64 `json:"std_dev_delta"`
	MaxAbsDelta float64 `json:"max_abs_delta"`
	TopDriver   string  `json:"top_driver,omitempty"`
	TopDiluter  string  `json:"top_diluter,omitempty"`
}

// Summarize computes a Summary over the scored rows of t
func Summarize(t *Table) Summary {
	s := Summary{Variants: len(t.Rows)}

	var deltas stats.Float64Data
	minDelta, maxDelta := math.Inf(1), math.Inf(-1)
	for _, r := range t.Rows {
		if r.DeltaLog10P == nil {
			s.Missing++
			continue
		}
		d := *r.DeltaLog10P
		deltas = append(deltas, d)
		switch r.Role() {
		case RoleDriver:
			s.Drivers++
		case RoleDiluter:
			s.Diluters++
		}
		if d < minDelta && d < 0 {
			minDelta = d
			s.TopDriver = r.VariantID.String()
		}
		if d > maxDelta && d > 0 {
			maxDelta = d
			s.TopDiluter = r.VariantID.String()
		}
	}

	s.Scored = len(deltas)
	if s.Scored == 0 {
		return s
	}

	s.MeanDelta, _ = deltas.Mean()
	s.MedianDelta, _ = deltas.Median()
	s.StdDevDelta, _ = deltas.StandardDeviation()
	for _, d := range deltas {
		s.MaxAbsDelta = math.Max(s.MaxAbsDelta, math.Abs(d))
	}
	return s
}

// Ranked returns scored rows ordered by |DeltaLog10P| descending; ties keep
// table order. The table itself is not reordered.
func Ranked(t *Table) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.DeltaLog10P != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(*out[i].DeltaLog10P) > math.Abs(*out[j].DeltaLog10P)
	})
	return out
}

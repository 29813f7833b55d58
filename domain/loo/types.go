package loo

import (
	"time"

	"loostaar/domain/core"
)

// Columns is the stable column order of a result table
var Columns = []string{"VariantID", "BaselinePValue", "LOOPValue", "DeltaLog10P"}

// Row is the leave-one-out outcome for a single variant.
// LOOPValue and DeltaLog10P are nil when missing.
type Row struct {
	VariantID      core.VariantID `json:"variant_id" db:"variant_id"`
	BaselinePValue float64        `json:"baseline_p_value" db:"baseline_p_value"`
	LOOPValue      *float64       `json:"loo_p_value" db:"loo_p_value"`
	DeltaLog10P    *float64       `json:"delta_log10_p" db:"delta_log10_p"`
}

// Missing reports whether the leave-one-out p-value is absent
func (r Row) Missing() bool {
	return r.LOOPValue == nil
}

// Role classifies a variant's influence on the omnibus signal
type Role string

const (
	// RoleDriver variants strengthen the signal: removing them raises p
	RoleDriver Role = "driver"
	// RoleDiluter variants weaken the signal: removing them lowers p
	RoleDiluter Role = "diluter"
)

// Role returns the influence class of the row, or "" when delta is missing
func (r Row) Role() Role {
	if r.DeltaLog10P == nil {
		return ""
	}
	if *r.DeltaLog10P < 0 {
		return RoleDriver
	}
	return RoleDiluter
}

// WarningKind tags the source of a warning
type WarningKind string

const (
	WarningMultipleOmnibus     WarningKind = "multiple_omnibus"
	WarningNoVariantsRemaining WarningKind = "no_variants_remaining"
	WarningTestFailed          WarningKind = "test_failed"
	WarningMalformedResult     WarningKind = "malformed_result"
	WarningTimeout             WarningKind = "timeout"
	WarningFewRareVariants     WarningKind = "few_rare_variants"
)

// Warning is a non-fatal diagnostic. VariantIndex is -1 for the baseline call.
type Warning struct {
	VariantID    core.VariantID `json:"variant_id,omitempty" db:"variant_id"`
	VariantIndex int            `json:"variant_index" db:"variant_index"`
	Kind         WarningKind    `json:"kind" db:"kind"`
	Message      string         `json:"message" db:"message"`
}

// Baseline reports whether the warning was raised by the full-matrix call
func (w Warning) Baseline() bool {
	return w.VariantIndex < 0
}

// Parameters records the settings of a run
type Parameters struct {
	MAFCutoff            float64       `json:"maf_cutoff" db:"maf_cutoff"`
	RareVariantThreshold int           `json:"rare_variant_threshold" db:"rare_variant_threshold"`
	Concurrency          int           `json:"concurrency" db:"concurrency"`
	OmnibusPolicy        string        `json:"omnibus_policy" db:"omnibus_policy"`
	Timeout              time.Duration `json:"timeout" db:"timeout"`
	Retries              int           `json:"retries" db:"retries"`
}

// VariantFrequency records a variant's minor allele frequency and how many
// rare variants remain when it is excluded
type VariantFrequency struct {
	VariantID           core.VariantID `json:"variant_id" db:"variant_id"`
	MAF                 float64        `json:"maf" db:"maf"`
	RareVariantsWithout int            `json:"rare_variants_without" db:"rare_variants_without"`
}

// Table is the assembled result of one leave-one-out run
type Table struct {
	RunID          core.RunID `json:"run_id"`
	Label          string     `json:"label,omitempty"`
	NullModel      string     `json:"null_model,omitempty"`
	Fingerprint    core.Hash  `json:"fingerprint,omitempty"`
	BaselinePValue float64    `json:"baseline_p_value"`
	Rows           []Row      `json:"rows"`
	Warnings       []Warning  `json:"warnings,omitempty"`
	Parameters     Parameters `json:"parameters"`
	NumSamples     int        `json:"num_samples"`
	// RareVariants counts full-matrix variants at or below the MAF cutoff
	RareVariants int `json:"rare_variants"`
	// Frequencies is in row order
	Frequencies []VariantFrequency `json:"frequencies,omitempty"`
	// Positions optionally places variants on the genome for plotting
	Positions  map[core.VariantID]float64 `json:"positions,omitempty"`
	StartedAt  core.Timestamp             `json:"started_at"`
	FinishedAt core.Timestamp             `json:"finished_at"`
}

// Duration returns the wall-clock time of the run
func (t *Table) Duration() time.Duration {
	return t.FinishedAt.Sub(t.StartedAt)
}

// VariantIDs returns the variants in row order
func (t *Table) VariantIDs() []core.VariantID {
	out := make([]core.VariantID, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.VariantID
	}
	return out
}

// Row returns the row for a variant
func (t *Table) Row(id core.VariantID) (Row, bool) {
	for _, r := range t.Rows {
		if r.VariantID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Frequency returns the frequency record of a variant
func (t *Table) Frequency(id core.VariantID) (VariantFrequency, bool) {
	for _, f := range t.Frequencies {
		if f.VariantID == id {
			return f, true
		}
	}
	return VariantFrequency{}, false
}

// MissingCount returns how many rows lack a leave-one-out p-value
func (t *Table) MissingCount() int {
	n := 0
	for _, r := range t.Rows {
		if r.Missing() {
			n++
		}
	}
	return n
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/domain/loo"
	"loostaar/internal"
	apperrors "loostaar/internal/errors"
	"loostaar/ports"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the worker pool size when the caller gives none
const DefaultConcurrency = 4

// LeaveOneOutService computes a baseline omnibus p-value and the p-value with
// each variant excluded in turn.
//
// Global problems (malformed matrix, failed baseline) abort the run. Per-variant
// problems become a missing LOOPValue plus a warning; the batch always yields
// one row per input variant, in input column order.
type LeaveOneOutService struct {
	test                 ports.AssociationTest
	policy               OmnibusPolicy
	callPolicy           CallPolicy
	rareVariantThreshold int
	logger               *internal.Logger
}

// Option configures a LeaveOneOutService
type Option func(*LeaveOneOutService)

// WithOmnibusPolicy sets the multi-valued result policy
func WithOmnibusPolicy(p OmnibusPolicy) Option {
	return func(s *LeaveOneOutService) { s.policy = p }
}

// WithCallPolicy sets per-call timeout and retries
func WithCallPolicy(p CallPolicy) Option {
	return func(s *LeaveOneOutService) { s.callPolicy = p }
}

// WithRareVariantThreshold overrides the minimum rare variant count
func WithRareVariantThreshold(n int) Option {
	return func(s *LeaveOneOutService) { s.rareVariantThreshold = n }
}

// WithLogger sets the logger
func WithLogger(l *internal.Logger) Option {
	return func(s *LeaveOneOutService) { s.logger = l }
}

// NewLeaveOneOutService binds the service to an association test backend.
// A missing backend is a configuration error.
func NewLeaveOneOutService(test ports.AssociationTest, opts ...Option) (*LeaveOneOutService, error) {
	if test == nil {
		return nil, apperrors.ConfigInvalid("an association test backend is required")
	}
	s := &LeaveOneOutService{
		test:                 test,
		policy:               PolicyFirst,
		rareVariantThreshold: ports.DefaultRareVariantThreshold,
		logger:               internal.DefaultLogger.With("loo"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseOmnibusPolicy(string(s.policy)); err != nil {
		return nil, apperrors.ConfigInvalid(err.Error())
	}
	if s.rareVariantThreshold < 1 {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("rare variant threshold must be >= 1, got %d", s.rareVariantThreshold))
	}
	return s, nil
}

// RunRequest describes one leave-one-out analysis
type RunRequest struct {
	Matrix      *genotype.Matrix
	NullModel   ports.NullModel
	MAFCutoff   float64
	Concurrency int
	Label       string
	Positions   genotype.Positions
}

// Run validates the input, computes the baseline once, fans out one
// exclusion test per variant and assembles the result table.
func (s *LeaveOneOutService) Run(ctx context.Context, req RunRequest) (*loo.Table, error) {
	started := core.Now()

	if err := s.Validate(req.Matrix); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	table := &loo.Table{
		RunID:       core.NewRunID(),
		Label:       req.Label,
		NullModel:   req.NullModel.Handle(),
		Fingerprint: req.Matrix.Fingerprint(),
		NumSamples:  req.Matrix.NumSamples(),
		Positions:   copyPositions(req.Positions),
		StartedAt:   started,
		Parameters: loo.Parameters{
			MAFCutoff:            req.MAFCutoff,
			RareVariantThreshold: s.rareVariantThreshold,
			Concurrency:          concurrency,
			OmnibusPolicy:        string(s.policy),
			Timeout:              s.callPolicy.Timeout,
			Retries:              s.callPolicy.Retries,
		},
	}

	s.logger.Info("run %s: %d samples x %d variants, backend=%s, concurrency=%d",
		table.RunID, req.Matrix.NumSamples(), req.Matrix.NumVariants(), s.test.Name(), concurrency)

	baseline, warnings, err := s.ComputeBaseline(ctx, req.Matrix, req.NullModel, req.MAFCutoff)
	if err != nil {
		return nil, err
	}

	table.RareVariants, table.Frequencies = frequencies(req.Matrix, req.MAFCutoff)
	if table.RareVariants < s.rareVariantThreshold {
		w := loo.Warning{
			VariantIndex: -1,
			Kind:         loo.WarningFewRareVariants,
			Message: fmt.Sprintf("full matrix has %d rare variant(s) at MAF <= %g, below the threshold of %d",
				table.RareVariants, req.MAFCutoff, s.rareVariantThreshold),
		}
		s.logger.Warn("%s", w.Message)
		warnings = append(warnings, w)
	}

	rows, variantWarnings := s.RunLeaveOneOut(ctx, req.Matrix, req.NullModel, req.MAFCutoff, baseline, concurrency)

	table.BaselinePValue = baseline
	table.Rows = s.Assemble(rows)
	table.Warnings = append(warnings, variantWarnings...)
	table.FinishedAt = core.Now()

	s.logger.Info("run %s: baseline p=%.6g, %d/%d variants scored, %d warnings in %v",
		table.RunID, baseline, len(rows)-table.MissingCount(), len(rows), len(table.Warnings), table.Duration())

	return table, nil
}

func validateRequest(req RunRequest) error {
	if req.NullModel == nil || strings.TrimSpace(req.NullModel.Handle()) == "" {
		return apperrors.InvalidInput(core.NewInvalidInputError("null model is required"))
	}
	if req.MAFCutoff <= 0 || req.MAFCutoff > 0.5 {
		return apperrors.InvalidInput(core.NewInvalidInputError("MAF cutoff %v outside (0, 0.5]", req.MAFCutoff))
	}
	return nil
}

// Validate checks the genotype matrix once, before any association test call
func (s *LeaveOneOutService) Validate(m *genotype.Matrix) error {
	if err := m.Validate(); err != nil {
		return apperrors.InvalidInput(err)
	}
	return nil
}

func (s *LeaveOneOutService) params(mafCutoff float64) ports.TestParams {
	return ports.TestParams{
		MAFCutoff:            mafCutoff,
		RareVariantThreshold: s.rareVariantThreshold,
	}
}

// ComputeBaseline runs the association test on the full matrix. A failed,
// timed-out or malformed call is fatal. A multi-valued result is resolved by
// the omnibus policy and reported as a warning.
func (s *LeaveOneOutService) ComputeBaseline(ctx context.Context, m *genotype.Matrix, model ports.NullModel, mafCutoff float64) (float64, []loo.Warning, error) {
	start := time.Now()
	res, attempts, err := s.callPolicy.call(ctx, s.test, m, model, s.params(mafCutoff))
	if err != nil {
		return 0, nil, apperrors.AssociationTestError(s.test.Name(),
			fmt.Errorf("after %d attempt(s): %w", attempts, err))
	}

	sel, err := s.policy.Select(res)
	if err != nil {
		return 0, nil, apperrors.AssociationTestError(s.test.Name(), err)
	}

	var warnings []loo.Warning
	if sel.multiValued() {
		w := loo.Warning{
			VariantIndex: -1,
			Kind:         loo.WarningMultipleOmnibus,
			Message: fmt.Sprintf("baseline test returned %d omnibus p-values; using %s value %.6g",
				sel.choices, s.policy, sel.pValue),
		}
		s.logger.Warn("%s", w.Message)
		warnings = append(warnings, w)
	}

	s.logger.Debug("baseline p=%.6g in %v", sel.pValue, time.Since(start))
	return sel.pValue, warnings, nil
}

// outcome is the tagged result of one exclusion unit
type outcome struct {
	index    int
	pValue   *float64
	warnings []loo.Warning
}

// RunLeaveOneOut excludes each variant in turn and re-runs the test on a
// bounded worker pool. It never fails: every per-variant problem becomes a
// missing value plus a warning. Rows come back in input column order.
func (s *LeaveOneOutService) RunLeaveOneOut(ctx context.Context, m *genotype.Matrix, model ports.NullModel, mafCutoff, baselinePValue float64, concurrency int) ([]loo.Row, []loo.Warning) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	n := m.NumVariants()
	params := s.params(mafCutoff)
	rareFull, rareWithout := m.RareCounts(mafCutoff)

	sem := semaphore.NewWeighted(int64(concurrency))
	results := make(chan outcome, n)

	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- s.failed(m, i, loo.WarningTestFailed, fmt.Errorf("not dispatched: %w", err))
			continue
		}
		go func(index int) {
			defer sem.Release(1)
			results <- s.excludeAndTest(ctx, m, model, params, index)
		}(i)
	}

	outcomes := make([]outcome, n)
	for i := 0; i < n; i++ {
		o := <-results
		outcomes[o.index] = o
	}

	rows := make([]loo.Row, n)
	var warnings []loo.Warning
	for i, o := range outcomes {
		rows[i] = loo.NewRow(m.VariantIDs[i], baselinePValue, o.pValue)
		warnings = append(warnings, o.warnings...)
		// only flag views that drop below the threshold the full matrix met
		if n > 1 && rareFull >= s.rareVariantThreshold && rareWithout[i] < s.rareVariantThreshold {
			w := loo.Warning{
				VariantID:    m.VariantIDs[i],
				VariantIndex: i,
				Kind:         loo.WarningFewRareVariants,
				Message: fmt.Sprintf("excluding %s leaves %d rare variant(s), below the threshold of %d",
					m.VariantIDs[i], rareWithout[i], s.rareVariantThreshold),
			}
			s.logger.Warn("%s", w.Message)
			warnings = append(warnings, w)
		}
	}
	return rows, warnings
}

// excludeAndTest is the unit of work for variant index
func (s *LeaveOneOutService) excludeAndTest(ctx context.Context, m *genotype.Matrix, model ports.NullModel, params ports.TestParams, index int) outcome {
	view, err := m.Exclude(index)
	if err != nil {
		return s.failed(m, index, loo.WarningTestFailed, err)
	}
	if view.NumVariants() == 0 {
		return s.failed(m, index, loo.WarningNoVariantsRemaining, core.ErrNoVariantsRemaining)
	}

	start := time.Now()
	res, attempts, err := s.callPolicy.call(ctx, s.test, view, model, params)
	if err != nil {
		kind := loo.WarningTestFailed
		if errors.Is(err, context.DeadlineExceeded) {
			kind = loo.WarningTimeout
		}
		return s.failed(m, index, kind, fmt.Errorf("after %d attempt(s): %w", attempts, err))
	}

	sel, err := s.policy.Select(res)
	if err != nil {
		kind := loo.WarningMalformedResult
		if errors.Is(err, core.ErrMultipleOmnibus) {
			kind = loo.WarningMultipleOmnibus
		}
		return s.failed(m, index, kind, err)
	}

	o := outcome{index: index, pValue: loo.Float(sel.pValue)}
	if sel.multiValued() {
		w := loo.Warning{
			VariantID:    m.VariantIDs[index],
			VariantIndex: index,
			Kind:         loo.WarningMultipleOmnibus,
			Message: fmt.Sprintf("test without %s returned %d omnibus p-values; using %s value %.6g",
				m.VariantIDs[index], sel.choices, s.policy, sel.pValue),
		}
		s.logger.Warn("%s", w.Message)
		o.warnings = append(o.warnings, w)
	}

	s.logger.Trace("variant %s excluded: p=%.6g in %v", m.VariantIDs[index], sel.pValue, time.Since(start))
	return o
}

func (s *LeaveOneOutService) failed(m *genotype.Matrix, index int, kind loo.WarningKind, err error) outcome {
	w := loo.Warning{
		VariantID:    m.VariantIDs[index],
		VariantIndex: index,
		Kind:         kind,
		Message:      fmt.Sprintf("variant %s: %v", m.VariantIDs[index], err),
	}
	s.logger.Warn("%s", w.Message)
	return outcome{index: index, warnings: []loo.Warning{w}}
}

// Assemble concatenates rows in input variant order
func (s *LeaveOneOutService) Assemble(rows []loo.Row) []loo.Row {
	return loo.Assemble(rows)
}

// frequencies returns the full-matrix rare variant count and, in column
// order, each variant's MAF with the rare count of its exclusion view
func frequencies(m *genotype.Matrix, mafCutoff float64) (int, []loo.VariantFrequency) {
	full, without := m.RareCounts(mafCutoff)
	mafs := m.MinorAlleleFrequencies()
	out := make([]loo.VariantFrequency, len(mafs))
	for j, maf := range mafs {
		out[j] = loo.VariantFrequency{
			VariantID:           m.VariantIDs[j],
			MAF:                 maf,
			RareVariantsWithout: without[j],
		}
	}
	return full, out
}

func copyPositions(p genotype.Positions) map[core.VariantID]float64 {
	if len(p) == 0 {
		return nil
	}
	out := make(map[core.VariantID]float64, len(p))
	for id, pos := range p {
		out[id] = pos
	}
	return out
}

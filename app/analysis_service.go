package app

import (
	"context"

	"loostaar/domain/core"
	"loostaar/domain/loo"
	"loostaar/internal"
	apperrors "loostaar/internal/errors"
	"loostaar/ports"
)

// AnalysisService runs leave-one-out analyses and keeps their tables
type AnalysisService struct {
	loo    *LeaveOneOutService
	runs   ports.RunRepository
	logger *internal.Logger
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(looService *LeaveOneOutService, runs ports.RunRepository) *AnalysisService {
	return &AnalysisService{
		loo:    looService,
		runs:   runs,
		logger: internal.DefaultLogger.With("analysis"),
	}
}

// Analyze runs and stores a leave-one-out analysis. The table is returned
// even when persisting it fails.
func (s *AnalysisService) Analyze(ctx context.Context, req RunRequest) (*loo.Table, error) {
	table, err := s.loo.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, table); err != nil {
		s.logger.Error("failed to store run %s: %v", table.RunID, err)
		return table, apperrors.Wrapf(err, "store run %s", table.RunID)
	}
	return table, nil
}

// Get loads a stored run
func (s *AnalysisService) Get(ctx context.Context, id core.RunID) (*loo.Table, error) {
	table, err := s.runs.Get(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, apperrors.NotFound("run "+id.String(), err)
		}
		return nil, apperrors.Wrapf(err, "load run %s", id)
	}
	return table, nil
}

// List returns stored runs, newest first
func (s *AnalysisService) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.runs.List(ctx, limit, offset)
}

// Delete removes a stored run
func (s *AnalysisService) Delete(ctx context.Context, id core.RunID) error {
	if err := s.runs.Delete(ctx, id); err != nil {
		if core.IsNotFoundError(err) {
			return apperrors.NotFound("run "+id.String(), err)
		}
		return apperrors.Wrapf(err, "delete run %s", id)
	}
	return nil
}

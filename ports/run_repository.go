package ports

import (
	"context"

	"loostaar/domain/core"
	"loostaar/domain/loo"
)

// RunSummary is the listing view of a stored run
type RunSummary struct {
	RunID          core.RunID     `json:"run_id" db:"run_id"`
	Label          string         `json:"label" db:"label"`
	BaselinePValue float64        `json:"baseline_p_value" db:"baseline_p_value"`
	Variants       int            `json:"variants" db:"variants"`
	Missing        int            `json:"missing" db:"missing"`
	StartedAt      core.Timestamp `json:"started_at" db:"started_at"`
}

// RunRepository persists assembled leave-one-out tables
type RunRepository interface {
	Save(ctx context.Context, table *loo.Table) error
	Get(ctx context.Context, id core.RunID) (*loo.Table, error)
	List(ctx context.Context, limit, offset int) ([]RunSummary, error)
	Delete(ctx context.Context, id core.RunID) error
}

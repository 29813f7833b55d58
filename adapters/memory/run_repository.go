package memory

import (
	"context"
	"sort"
	"sync"

	"loostaar/domain/core"
	"loostaar/domain/loo"
	"loostaar/ports"
)

// RunRepository implements ports.RunRepository with in-memory storage
type RunRepository struct {
	runs map[core.RunID]*loo.Table
	mu   sync.RWMutex
}

// NewRunRepository creates an empty repository
func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[core.RunID]*loo.Table)}
}

func (r *RunRepository) Save(ctx context.Context, table *loo.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[table.RunID] = clone(table)
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id core.RunID) (*loo.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.runs[id]
	if !ok {
		return nil, core.NewRunNotFoundError(id)
	}
	return clone(table), nil
}

func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	r.mu.RLock()
	summaries := make([]ports.RunSummary, 0, len(r.runs))
	for _, t := range r.runs {
		summaries = append(summaries, ports.RunSummary{
			RunID:          t.RunID,
			Label:          t.Label,
			BaselinePValue: t.BaselinePValue,
			Variants:       len(t.Rows),
			Missing:        t.MissingCount(),
			StartedAt:      t.StartedAt,
		})
	}
	r.mu.RUnlock()

	// newest first; run IDs are time-ordered UUIDs
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RunID > summaries[j].RunID
	})

	if offset >= len(summaries) {
		return []ports.RunSummary{}, nil
	}
	summaries = summaries[offset:]
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (r *RunRepository) Delete(ctx context.Context, id core.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return core.NewRunNotFoundError(id)
	}
	delete(r.runs, id)
	return nil
}

func clone(t *loo.Table) *loo.Table {
	c := *t
	c.Rows = make([]loo.Row, len(t.Rows))
	for i, row := range t.Rows {
		c.Rows[i] = row
		if row.LOOPValue != nil {
			c.Rows[i].LOOPValue = loo.Float(*row.LOOPValue)
		}
		if row.DeltaLog10P != nil {
			c.Rows[i].DeltaLog10P = loo.Float(*row.DeltaLog10P)
		}
	}
	c.Warnings = append([]loo.Warning(nil), t.Warnings...)
	c.Frequencies = append([]loo.VariantFrequency(nil), t.Frequencies...)
	if t.Positions != nil {
		c.Positions = make(map[core.VariantID]float64, len(t.Positions))
		for id, pos := range t.Positions {
			c.Positions[id] = pos
		}
	}
	return &c
}

// Ensure RunRepository implements ports.RunRepository
var _ ports.RunRepository = (*RunRepository)(nil)

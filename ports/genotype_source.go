package ports

import (
	"context"

	"loostaar/domain/genotype"
)

// GenotypeSource loads a genotype matrix into memory
type GenotypeSource interface {
	ReadMatrix(ctx context.Context) (*genotype.Matrix, error)
}

// PositionSource loads variant positions for plotting
type PositionSource interface {
	ReadPositions(ctx context.Context) (genotype.Positions, error)
}

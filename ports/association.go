package ports

import (
	"context"

	"loostaar/domain/genotype"
)

// DefaultRareVariantThreshold is the minimum number of rare variants the
// association test requires
const DefaultRareVariantThreshold = 2

// NullModel is an opaque fitted null model. Only the AssociationTest
// implementation that produced the handle knows how to interpret it.
type NullModel interface {
	// Handle identifies the model (a file path, a server-side ID, ...)
	Handle() string
}

// NullModelRef is a NullModel identified purely by its handle string
type NullModelRef string

func (r NullModelRef) Handle() string { return string(r) }

// TestParams are passed unchanged to every AssociationTest call of a run
type TestParams struct {
	MAFCutoff            float64 `json:"maf_cutoff"`
	RareVariantThreshold int     `json:"rare_variant_threshold"`
}

// TestResult holds the p-values of one association test call.
// Omnibus normally contains a single value; Components carries the
// per-test p-values the omnibus was combined from, when reported.
type TestResult struct {
	Omnibus    []float64          `json:"omnibus"`
	Components map[string]float64 `json:"components,omitempty"`
}

// AssociationTest computes a gene/region-level rare-variant association test
type AssociationTest interface {
	// Name identifies the backend in logs and run metadata
	Name() string

	// Test runs the omnibus test on matrix under model. Implementations must
	// not mutate matrix and must honour ctx cancellation where possible.
	Test(ctx context.Context, matrix *genotype.Matrix, model NullModel, params TestParams) (*TestResult, error)
}

// AssociationTestFunc adapts a function to AssociationTest
type AssociationTestFunc func(ctx context.Context, matrix *genotype.Matrix, model NullModel, params TestParams) (*TestResult, error)

func (f AssociationTestFunc) Name() string { return "func" }

func (f AssociationTestFunc) Test(ctx context.Context, matrix *genotype.Matrix, model NullModel, params TestParams) (*TestResult, error) {
	return f(ctx, matrix, model, params)
}

package association

import (
	"fmt"

	"loostaar/domain/genotype"
	"loostaar/ports"
)

// Request is the JSON document handed to an external association test
type Request struct {
	NullModel            string      `json:"null_model"`
	VariantIDs           []string    `json:"variant_ids"`
	SampleIDs            []string    `json:"sample_ids,omitempty"`
	Genotypes            [][]float64 `json:"genotypes"`
	MAFCutoff            float64     `json:"maf_cutoff"`
	RareVariantThreshold int         `json:"rare_variant_threshold"`
}

// Response is the JSON document an external association test returns
type Response struct {
	Omnibus    []float64          `json:"omnibus"`
	Components map[string]float64 `json:"components,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func newRequest(m *genotype.Matrix, model ports.NullModel, params ports.TestParams) Request {
	req := Request{
		NullModel:            model.Handle(),
		VariantIDs:           make([]string, len(m.VariantIDs)),
		Genotypes:            m.Data,
		MAFCutoff:            params.MAFCutoff,
		RareVariantThreshold: params.RareVariantThreshold,
	}
	for i, id := range m.VariantIDs {
		req.VariantIDs[i] = id.String()
	}
	if len(m.SampleIDs) > 0 {
		req.SampleIDs = make([]string, len(m.SampleIDs))
		for i, id := range m.SampleIDs {
			req.SampleIDs[i] = id.String()
		}
	}
	return req
}

func (r *Response) result() (*ports.TestResult, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("association test reported: %s", r.Error)
	}
	return &ports.TestResult{Omnibus: r.Omnibus, Components: r.Components}, nil
}

package app

import (
	"fmt"
	"math"
	"strings"

	"loostaar/domain/core"
	"loostaar/ports"
)

// OmnibusPolicy decides which value to use when an association test reports
// more than one omnibus p-value
type OmnibusPolicy string

const (
	// PolicyFirst takes the first value and warns
	PolicyFirst OmnibusPolicy = "first"
	// PolicyMin takes the smallest value and warns
	PolicyMin OmnibusPolicy = "min"
	// PolicyStrict rejects multi-valued results
	PolicyStrict OmnibusPolicy = "strict"
)

// ParseOmnibusPolicy converts a configuration string to a policy
func ParseOmnibusPolicy(s string) (OmnibusPolicy, error) {
	switch p := OmnibusPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFirst, PolicyMin, PolicyStrict:
		return p, nil
	case "":
		return PolicyFirst, nil
	default:
		return "", fmt.Errorf("unknown omnibus policy %q", s)
	}
}

// selection is the outcome of applying a policy to a test result
type selection struct {
	pValue  float64
	choices int // number of omnibus values reported
}

func (s selection) multiValued() bool { return s.choices > 1 }

// Select validates res and picks a single omnibus p-value.
// Every reported value must be a finite probability in [0, 1].
func (p OmnibusPolicy) Select(res *ports.TestResult) (selection, error) {
	if res == nil {
		return selection{}, core.NewMalformedResultError("nil result")
	}
	if len(res.Omnibus) == 0 {
		return selection{}, core.NewMalformedResultError("no omnibus p-value")
	}
	for i, v := range res.Omnibus {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return selection{}, core.NewMalformedResultError("omnibus value %d = %v is not a p-value", i, v)
		}
	}

	sel := selection{pValue: res.Omnibus[0], choices: len(res.Omnibus)}
	if !sel.multiValued() {
		return sel, nil
	}

	switch p {
	case PolicyMin:
		for _, v := range res.Omnibus[1:] {
			sel.pValue = math.Min(sel.pValue, v)
		}
	case PolicyStrict:
		return selection{}, fmt.Errorf("%w: %d values %v", core.ErrMultipleOmnibus, len(res.Omnibus), res.Omnibus)
	}
	return sel, nil
}

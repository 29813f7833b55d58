package app

import (
	"errors"
	"math"
	"testing"

	"loostaar/domain/core"
	"loostaar/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOmnibusPolicy(t *testing.T) {
	for in, want := range map[string]OmnibusPolicy{
		"":       PolicyFirst,
		"first":  PolicyFirst,
		" MIN ":  PolicyMin,
		"Strict": PolicyStrict,
	} {
		got, err := ParseOmnibusPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOmnibusPolicy("median")
	assert.Error(t, err)
}

func TestOmnibusPolicySelect(t *testing.T) {
	single := &ports.TestResult{Omnibus: []float64{0.3}}
	multi := &ports.TestResult{Omnibus: []float64{0.3, 0.01}}

	sel, err := PolicyStrict.Select(single)
	require.NoError(t, err)
	assert.Equal(t, 0.3, sel.pValue)
	assert.False(t, sel.multiValued())

	sel, err = PolicyFirst.Select(multi)
	require.NoError(t, err)
	assert.Equal(t, 0.3, sel.pValue)
	assert.True(t, sel.multiValued())

	sel, err = PolicyMin.Select(multi)
	require.NoError(t, err)
	assert.Equal(t, 0.01, sel.pValue)

	_, err = PolicyStrict.Select(multi)
	assert.True(t, errors.Is(err, core.ErrMultipleOmnibus))

	for _, bad := range []*ports.TestResult{
		nil,
		{},
		{Omnibus: []float64{math.NaN()}},
		{Omnibus: []float64{0.2, math.Inf(1)}},
		{Omnibus: []float64{1.0001}},
	} {
		_, err := PolicyFirst.Select(bad)
		assert.True(t, errors.Is(err, core.ErrMalformedResult), "%v", bad)
	}

	// p = 1 and p = 0 are valid probabilities
	_, err = PolicyFirst.Select(&ports.TestResult{Omnibus: []float64{1}})
	assert.NoError(t, err)
	_, err = PolicyFirst.Select(&ports.TestResult{Omnibus: []float64{0}})
	assert.NoError(t, err)
}

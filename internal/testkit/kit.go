package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/ports"
)

// SetKey identifies a variant set independent of column order
func SetKey(ids []core.VariantID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

type script struct {
	pValues  []float64
	err      error
	panics   bool
	delay    time.Duration
	result   *ports.TestResult
	verbatim bool
}

// ScriptedTest is an AssociationTest whose answer depends only on which
// variants are present in the matrix it receives
type ScriptedTest struct {
	variants []core.VariantID
	scripts  map[string]script
	fallback []float64

	mu     sync.Mutex
	calls  []string
	params []ports.TestParams
	active int
	peak   int
}

// NewScriptedTest creates a fake for a matrix with the given columns
func NewScriptedTest(variants []core.VariantID) *ScriptedTest {
	return &ScriptedTest{
		variants: variants,
		scripts:  make(map[string]script),
	}
}

func (s *ScriptedTest) excluding(id core.VariantID) string {
	rest := make([]core.VariantID, 0, len(s.variants))
	for _, v := range s.variants {
		if v != id {
			rest = append(rest, v)
		}
	}
	return SetKey(rest)
}

// OnFull scripts the full-matrix (baseline) answer
func (s *ScriptedTest) OnFull(pValues ...float64) *ScriptedTest {
	s.scripts[SetKey(s.variants)] = script{pValues: pValues}
	return s
}

// OnExcluding scripts the answer when id is left out
func (s *ScriptedTest) OnExcluding(id core.VariantID, pValues ...float64) *ScriptedTest {
	s.scripts[s.excluding(id)] = script{pValues: pValues}
	return s
}

// FailFull makes the baseline call fail
func (s *ScriptedTest) FailFull(err error) *ScriptedTest {
	s.scripts[SetKey(s.variants)] = script{err: err}
	return s
}

// FailExcluding makes the call without id fail
func (s *ScriptedTest) FailExcluding(id core.VariantID, err error) *ScriptedTest {
	s.scripts[s.excluding(id)] = script{err: err}
	return s
}

// PanicExcluding makes the call without id panic
func (s *ScriptedTest) PanicExcluding(id core.VariantID) *ScriptedTest {
	s.scripts[s.excluding(id)] = script{panics: true}
	return s
}

// ReturnExcluding makes the call without id return res verbatim
func (s *ScriptedTest) ReturnExcluding(id core.VariantID, res *ports.TestResult) *ScriptedTest {
	s.scripts[s.excluding(id)] = script{result: res, verbatim: true}
	return s
}

// DelayExcluding makes the call without id block for d (or until ctx ends)
func (s *ScriptedTest) DelayExcluding(id core.VariantID, d time.Duration, pValues ...float64) *ScriptedTest {
	s.scripts[s.excluding(id)] = script{delay: d, pValues: pValues}
	return s
}

// Otherwise sets the answer for unscripted variant sets
func (s *ScriptedTest) Otherwise(pValues ...float64) *ScriptedTest {
	s.fallback = pValues
	return s
}

func (s *ScriptedTest) Name() string { return "scripted" }

func (s *ScriptedTest) Test(ctx context.Context, matrix *genotype.Matrix, model ports.NullModel, params ports.TestParams) (*ports.TestResult, error) {
	key := SetKey(matrix.VariantIDs)

	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.params = append(s.params, params)
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	sc, ok := s.scripts[key]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if sc.delay > 0 {
		select {
		case <-time.After(sc.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case sc.panics:
		panic("scripted panic for " + key)
	case sc.err != nil:
		return nil, sc.err
	case sc.verbatim:
		return sc.result, nil
	case ok && len(sc.pValues) > 0:
		return &ports.TestResult{Omnibus: append([]float64(nil), sc.pValues...)}, nil
	case len(s.fallback) > 0:
		return &ports.TestResult{Omnibus: append([]float64(nil), s.fallback...)}, nil
	}
	return nil, fmt.Errorf("no scripted answer for variant set [%s]", key)
}

// Calls returns the variant-set keys seen, in call order
func (s *ScriptedTest) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Params returns the test parameters seen, in call order
func (s *ScriptedTest) Params() []ports.TestParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.TestParams(nil), s.params...)
}

// PeakConcurrency is the largest number of overlapping calls observed
func (s *ScriptedTest) PeakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// VariantIDs builds identifiers prefix1..prefixN
func VariantIDs(prefix string, n int) []core.VariantID {
	ids := make([]core.VariantID, n)
	for i := range ids {
		ids[i] = core.VariantID(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return ids
}

// RareMatrix builds a deterministic samples × variants matrix of rare
// heterozygous calls (each variant carried by at least one sample)
func RareMatrix(samples int, variants []core.VariantID, seed int64) *genotype.Matrix {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, samples)
	for i := range rows {
		rows[i] = make([]float64, len(variants))
		for j := range variants {
			if rng.Float64() < 0.004 {
				rows[i][j] = 1
			}
		}
	}
	for j := range variants {
		rows[j%samples][j] = 1
	}
	return genotype.NewMatrix(variants, rows)
}

// Example p-values of the reference six-variant gene
const (
	ExampleBaseline  = 0.005431518
	ExampleWithout1  = 0.107018465
	ExampleDelta1    = -1.29454
	ExampleSamples   = 5000
	ExampleNullModel = ports.NullModelRef("obj_nullmodel.rds")
)

// ExampleScenario returns the 5000 × 6 reference matrix and a test scripted
// with its baseline and per-variant p-values. var4 has no effect.
func ExampleScenario() (*genotype.Matrix, *ScriptedTest) {
	variants := VariantIDs("var", 6)
	m := RareMatrix(ExampleSamples, variants, 20240601)

	test := NewScriptedTest(variants).
		OnFull(ExampleBaseline).
		OnExcluding("var1", ExampleWithout1).
		OnExcluding("var2", 0.01190476).
		OnExcluding("var3", 0.00268127).
		OnExcluding("var4", ExampleBaseline).
		OnExcluding("var5", 0.00744102).
		OnExcluding("var6", 0.00391867)
	return m, test
}

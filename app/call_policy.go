package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/ports"
)

// CallPolicy bounds every association test invocation. A zero Timeout means
// no deadline beyond the caller's context.
type CallPolicy struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// invoke calls the test once, converting a panic into an error
func invoke(ctx context.Context, test ports.AssociationTest, m *genotype.Matrix, model ports.NullModel, params ports.TestParams) (res *ports.TestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: %v", core.ErrTestPanicked, r)
		}
	}()
	return test.Test(ctx, m, model, params)
}

// attempt makes one call bounded by the policy timeout. The backend runs in
// its own goroutine so a call that ignores ctx is abandoned at the deadline;
// its late answer is discarded.
func (p CallPolicy) attempt(ctx context.Context, test ports.AssociationTest, m *genotype.Matrix, model ports.NullModel, params ports.TestParams) (*ports.TestResult, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
	}
	defer cancel()

	type answer struct {
		res *ports.TestResult
		err error
	}
	done := make(chan answer, 1)
	go func() {
		res, err := invoke(callCtx, test, m, model, params)
		done <- answer{res, err}
	}()

	select {
	case a := <-done:
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			// answered, but only after the deadline passed
			if a.err == nil {
				return nil, fmt.Errorf("%w: no result within %v", context.DeadlineExceeded, p.Timeout)
			}
			if !errors.Is(a.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, a.err)
			}
		}
		return a.res, a.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no result within %v", context.DeadlineExceeded, p.Timeout)
	}
}

// call runs the test under the policy, retrying failed calls. Results are
// returned unvalidated; malformed output is not retried here.
func (p CallPolicy) call(ctx context.Context, test ports.AssociationTest, m *genotype.Matrix, model ports.NullModel, params ports.TestParams) (*ports.TestResult, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 && !p.wait(ctx) {
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++

		res, err := p.attempt(ctx, test, m, model, params)
		if err == nil {
			return res, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, attempts, lastErr
}

func (p CallPolicy) wait(ctx context.Context) bool {
	if p.Backoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

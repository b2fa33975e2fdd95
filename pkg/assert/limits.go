package assert

import (
	"fmt"
	"time"
)

// LatencyAssertion fails cases slower than a millisecond budget.
type LatencyAssertion struct {
	MaxMillis float64 `json:"max" yaml:"max"`
}

// Name returns the assertion type identifier.
func (a *LatencyAssertion) Name() string { return "latency" }

// Evaluate compares the case latency against the budget.
func (a *LatencyAssertion) Evaluate(input Input) (Result, error) {
	if a.MaxMillis <= 0 {
		return Result{}, fmt.Errorf("latency assertion: max (milliseconds) must be > 0")
	}

	limit := time.Duration(a.MaxMillis * float64(time.Millisecond))
	if input.Latency <= limit {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("latency %s within %s", input.Latency, limit),
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("latency %s exceeds %s", input.Latency, limit),
	}, nil
}

// CostAssertion fails cases more expensive than a USD budget.
type CostAssertion struct {
	MaxUSD float64 `json:"max" yaml:"max"`
}

// Name returns the assertion type identifier.
func (a *CostAssertion) Name() string { return "cost" }

// Evaluate compares the estimated case cost against the budget.
func (a *CostAssertion) Evaluate(input Input) (Result, error) {
	if a.MaxUSD <= 0 {
		return Result{}, fmt.Errorf("cost assertion: max (USD) must be > 0")
	}

	if input.Cost <= a.MaxUSD {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("cost $%.6f within $%.6f", input.Cost, a.MaxUSD),
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("cost $%.6f exceeds $%.6f", input.Cost, a.MaxUSD),
	}, nil
}

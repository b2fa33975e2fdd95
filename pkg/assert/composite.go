package assert

import (
	"fmt"
	"strings"
)

// Status represents the overall grading status of a case.
type Status string

const (
	StatusPass   Status = "pass"
	StatusFail   Status = "fail"
	StatusReview Status = "review"
	StatusError  Status = "error"
)

// AssertionScore captures a single assertion's contribution to the
// composite score.
type AssertionScore struct {
	Name   string  `json:"name"`
	Pass   bool    `json:"pass"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
	Status Status  `json:"status"`
}

// CompositeResult holds the aggregated grading result from all assertions.
type CompositeResult struct {
	Status         Status           `json:"status"`
	CompositeScore float64          `json:"composite_score"`
	Pass           bool             `json:"pass"`
	Scores         []AssertionScore `json:"scores"`
	Reason         string           `json:"reason"`
}

// Weighted pairs an assertion with its weight for composite scoring.
type Weighted struct {
	Assertion Assertion `json:"-"`
	Weight    float64   `json:"weight"`
}

// CompositeScorer combines multiple assertion results into a single score.
type CompositeScorer struct {
	Threshold float64 `json:"threshold"` // pass threshold (default 0.5)
}

// NewCompositeScorer creates a CompositeScorer with the given pass
// threshold. If threshold is 0, it defaults to 0.5.
func NewCompositeScorer(threshold float64) *CompositeScorer {
	if threshold == 0 {
		threshold = 0.5
	}
	return &CompositeScorer{Threshold: threshold}
}

// Score evaluates input against all configured assertions and returns the
// composite result. Each assertion's score is weighted and the composite
// is the weighted average normalized to 0-1.
func (cs *CompositeScorer) Score(input Input, weighted []Weighted) CompositeResult {
	var scores []AssertionScore
	var totalWeight float64
	var weightedSum float64
	var hasReview, hasError bool
	var reasons []string

	for _, w := range weighted {
		weight := w.Weight
		if weight == 0 {
			weight = 1.0
		}

		result, err := w.Assertion.Evaluate(input)

		as := AssertionScore{
			Name:   w.Assertion.Name(),
			Weight: weight,
		}

		if err != nil {
			as.Status = StatusError
			as.Reason = err.Error()
			hasError = true
			reasons = append(reasons, fmt.Sprintf("%s: error: %s", w.Assertion.Name(), err.Error()))
		} else {
			as.Pass = result.Pass
			as.Score = result.Score
			as.Reason = result.Reason

			if w.Assertion.Name() == "human-review" {
				as.Status = StatusReview
				hasReview = true
			} else if result.Pass {
				as.Status = StatusPass
			} else {
				as.Status = StatusFail
			}

			weightedSum += result.Score * weight
			totalWeight += weight
			reasons = append(reasons, fmt.Sprintf("%s: %s (score=%.2f)", w.Assertion.Name(), result.Reason, result.Score))
		}

		scores = append(scores, as)
	}

	var composite float64
	if totalWeight > 0 {
		composite = weightedSum / totalWeight
	}

	status := StatusFail
	pass := composite >= cs.Threshold

	if hasError {
		status = StatusError
		pass = false
	} else if hasReview {
		status = StatusReview
		pass = false
	} else if pass {
		status = StatusPass
	}

	return CompositeResult{
		Status:         status,
		CompositeScore: composite,
		Pass:           pass,
		Scores:         scores,
		Reason:         strings.Join(reasons, "; "),
	}
}

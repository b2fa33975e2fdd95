package assert

// HumanReviewAssertion marks cases for human review instead of
// auto-grading. When used as part of the composite scorer, it sets the
// status to "review" so the review command can present these cases for
// manual grading.
type HumanReviewAssertion struct {
	Reason string
}

// Name returns "human-review".
func (a *HumanReviewAssertion) Name() string { return "human-review" }

// Evaluate always returns a result with the "review" reason, signaling
// that the case requires human evaluation.
func (a *HumanReviewAssertion) Evaluate(_ Input) (Result, error) {
	reason := a.Reason
	if reason == "" {
		reason = "review"
	}
	return Result{
		Pass:   false,
		Score:  0,
		Reason: reason,
	}, nil
}

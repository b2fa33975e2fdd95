package assert

import (
	"fmt"
	"regexp"
)

// RegexAssertion matches the output against a regular expression pattern.
type RegexAssertion struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Name returns the assertion type identifier.
func (a *RegexAssertion) Name() string { return "regex" }

// Evaluate checks if the output matches the configured regex pattern.
func (a *RegexAssertion) Evaluate(input Input) (Result, error) {
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return Result{}, fmt.Errorf("invalid regex pattern %q: %w", a.Pattern, err)
	}

	if re.MatchString(input.Output) {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("output matches pattern %q", a.Pattern),
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output does not match pattern %q", a.Pattern),
	}, nil
}

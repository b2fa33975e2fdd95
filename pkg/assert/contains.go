package assert

import (
	"fmt"
	"strings"
)

// ContainsAssertion checks whether the output contains a substring.
type ContainsAssertion struct {
	Value           string `json:"value" yaml:"value"`
	CaseInsensitive bool   `json:"case_insensitive" yaml:"case_insensitive"`
	Negate          bool   `json:"negate" yaml:"negate"`
}

// Name returns the assertion type identifier.
func (a *ContainsAssertion) Name() string {
	if a.Negate {
		return "not-contains"
	}
	if a.CaseInsensitive {
		return "icontains"
	}
	return "contains"
}

// Evaluate checks for the configured substring, optionally case-insensitive
// or negated.
func (a *ContainsAssertion) Evaluate(input Input) (Result, error) {
	if a.Value == "" {
		return Result{}, fmt.Errorf("%s assertion: value is required", a.Name())
	}

	output, needle := input.Output, a.Value
	if a.CaseInsensitive {
		output = strings.ToLower(output)
		needle = strings.ToLower(needle)
	}

	found := strings.Contains(output, needle)
	if found != a.Negate {
		verb := "contains"
		if a.Negate {
			verb = "does not contain"
		}
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("output %s %q", verb, a.Value),
		}, nil
	}

	verb := "does not contain"
	if a.Negate {
		verb = "contains"
	}
	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output %s %q", verb, a.Value),
	}, nil
}

// StartsWithAssertion checks whether the output begins with a prefix.
type StartsWithAssertion struct {
	Value string `json:"value" yaml:"value"`
}

// Name returns the assertion type identifier.
func (a *StartsWithAssertion) Name() string { return "starts-with" }

// Evaluate checks whether the output starts with the configured prefix.
func (a *StartsWithAssertion) Evaluate(input Input) (Result, error) {
	if a.Value == "" {
		return Result{}, fmt.Errorf("starts-with assertion: value is required")
	}

	if strings.HasPrefix(input.Output, a.Value) {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: fmt.Sprintf("output starts with %q", a.Value),
		}, nil
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: fmt.Sprintf("output does not start with %q: got %q", a.Value, truncate(input.Output, 100)),
	}, nil
}

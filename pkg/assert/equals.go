package assert

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// EqualsAssertion compares the output against the case's expected output.
type EqualsAssertion struct {
	NormalizeWhitespace bool `json:"normalize_whitespace" yaml:"normalize_whitespace"`
}

// Name returns the assertion type identifier.
func (a *EqualsAssertion) Name() string { return "equals" }

// Evaluate checks whether the output matches the expected output exactly.
// When NormalizeWhitespace is true, leading/trailing whitespace is trimmed
// and runs of internal whitespace are collapsed to single spaces. Failures
// include a unified diff to make long mismatches readable.
func (a *EqualsAssertion) Evaluate(input Input) (Result, error) {
	got := input.Output
	want := input.ExpectedOutput

	if a.NormalizeWhitespace {
		got = normalizeWhitespace(got)
		want = normalizeWhitespace(want)
	}

	if got == want {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: "output matches expected",
		}, nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil || diff == "" {
		diff = "got " + truncate(got, 100) + ", want " + truncate(want, 100)
	}

	return Result{
		Pass:   false,
		Score:  0.0,
		Reason: "output does not match expected:\n" + strings.TrimRight(diff, "\n"),
	}, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Package review implements interactive human grading of run results,
// primarily for cases flagged by human-review assertions.
package review

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prompteval/prompteval/pkg/assert"
	"github.com/prompteval/prompteval/pkg/result"
)

// Filter determines which cases are shown for review.
type Filter string

const (
	FilterReview Filter = "review"
	FilterFail   Filter = "fail"
	FilterAll    Filter = "all"
)

// ParseFilter converts a string to a Filter, defaulting to FilterReview.
func ParseFilter(s string) Filter {
	switch strings.ToLower(s) {
	case "fail", "failed":
		return FilterFail
	case "all":
		return FilterAll
	default:
		return FilterReview
	}
}

// Reviewer handles interactive review of eval results.
type Reviewer struct {
	In  io.Reader
	Out io.Writer
}

// Review presents filtered cases for human grading and returns the number
// of cases graded. The summary's stats are recomputed afterwards.
func (r *Reviewer) Review(summary *result.RunSummary, filter Filter) (int, error) {
	indices := filterCases(summary.Results, filter)
	if len(indices) == 0 {
		fmt.Fprintf(r.Out, "No cases match filter %q.\n", string(filter))
		return 0, nil
	}

	scanner := bufio.NewScanner(r.In)
	reviewed := 0

	for i, idx := range indices {
		cr := &summary.Results[idx]
		fmt.Fprintf(r.Out, "\n--- Case %d of %d ---\n", i+1, len(indices))
		printCase(r.Out, cr)

		fmt.Fprintf(r.Out, "\nGrade [pass/fail/1-5/skip]: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if input == "" || input == "skip" || input == "s" {
			fmt.Fprintf(r.Out, "  Skipped.\n")
			continue
		}

		if !applyGrade(cr, input) {
			fmt.Fprintf(r.Out, "  Unrecognized grade %q, skipped.\n", input)
			continue
		}
		reviewed++
		fmt.Fprintf(r.Out, "  Graded: status=%s score=%.1f\n", cr.Status, cr.Score)
	}

	summary.Recompute()

	return reviewed, scanner.Err()
}

func filterCases(results []result.CaseResult, filter Filter) []int {
	var indices []int
	for i, cr := range results {
		switch filter {
		case FilterReview:
			if cr.Status == assert.StatusReview {
				indices = append(indices, i)
			}
		case FilterFail:
			if cr.Status == assert.StatusFail || cr.Status == assert.StatusReview {
				indices = append(indices, i)
			}
		case FilterAll:
			indices = append(indices, i)
		}
	}
	return indices
}

func printCase(w io.Writer, cr *result.CaseResult) {
	fmt.Fprintf(w, "Name:     %s\n", cr.CaseName)
	fmt.Fprintf(w, "Provider: %s\n", cr.ProviderID)
	fmt.Fprintf(w, "Status:   %s\n", cr.Status)
	if cr.Prompt != "" {
		fmt.Fprintf(w, "Prompt:   %s\n", truncateStr(cr.Prompt, 200))
	}
	fmt.Fprintf(w, "Output:   %s\n", truncateStr(cr.FinalResponse, 500))
	if cr.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", cr.Error)
	}
}

// applyGrade updates the case from a grade string and reports whether the
// input was recognized. Unrecognized input leaves the case untouched.
func applyGrade(cr *result.CaseResult, input string) bool {
	switch input {
	case "pass", "p":
		cr.Status = assert.StatusPass
		cr.Pass = true
		cr.Score = 1.0
	case "fail", "f":
		cr.Status = assert.StatusFail
		cr.Pass = false
		cr.Score = 0.0
	default:
		// Try numeric score 1-5.
		score, err := strconv.Atoi(input)
		if err != nil || score < 1 || score > 5 {
			return false
		}
		cr.Score = float64(score) / 5.0
		cr.Pass = score >= 4
		if cr.Pass {
			cr.Status = assert.StatusPass
		} else {
			cr.Status = assert.StatusFail
		}
	}
	return true
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

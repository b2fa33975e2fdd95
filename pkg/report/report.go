// Package report renders run summaries as terminal tables, JSON and
// Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prompteval/prompteval/pkg/assert"
	"github.com/prompteval/prompteval/pkg/result"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// StatusLabel returns a colored status string for terminal display.
func StatusLabel(cr result.CaseResult) string {
	switch {
	case cr.Error != "" || cr.Status == assert.StatusError:
		return colorRed + "ERROR" + colorReset
	case cr.Status == assert.StatusReview:
		return colorCyan + "REVIEW" + colorReset
	case cr.Pass:
		return colorGreen + "PASS" + colorReset
	default:
		return colorRed + "FAIL" + colorReset
	}
}

// StatusLabelPlain returns an uncolored status string.
func StatusLabelPlain(cr result.CaseResult) string {
	switch {
	case cr.Error != "" || cr.Status == assert.StatusError:
		return "ERROR"
	case cr.Status == assert.StatusReview:
		return "REVIEW"
	case cr.Pass:
		return "PASS"
	default:
		return "FAIL"
	}
}

// FormatDuration formats a duration for table display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// PrintSummaryTable writes a formatted summary table of run results.
func PrintSummaryTable(w io.Writer, summary *result.RunSummary, color bool) {
	sep := strings.Repeat("-", 100)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-28s  %-26s  %-7s  %6s  %8s  %8s\n", "CASE", "PROVIDER", "STATUS", "SCORE", "LATENCY", "COST")
	fmt.Fprintf(w, "%s\n", sep)

	for _, cr := range summary.Results {
		name := truncate(cr.CaseName, 28)
		prov := truncate(cr.ProviderID, 26)
		var status string
		if color {
			status = StatusLabel(cr)
		} else {
			status = StatusLabelPlain(cr)
		}
		cost := fmt.Sprintf("$%.4f", cr.Cost)
		if cr.CacheHit {
			cost += "*"
		}
		fmt.Fprintf(w, "  %-28s  %-26s  %-7s  %6.2f  %8s  %8s\n",
			name, prov, status, cr.Score, FormatDuration(cr.Duration), cost)
	}

	fmt.Fprintf(w, "%s\n", sep)
	s := summary.Stats
	if color {
		fmt.Fprintf(w, "  %s%d passed%s  %s%d failed%s  %s%d errored%s  %s%d need review%s  | avg %.2f | %s total\n",
			colorGreen, s.PassedCases, colorReset,
			colorRed, s.FailedCases, colorReset,
			colorYellow, s.ErroredCases, colorReset,
			colorCyan, s.ReviewCases, colorReset,
			s.AvgScore, FormatDuration(summary.Duration))
	} else {
		fmt.Fprintf(w, "  %d passed  %d failed  %d errored  %d need review  | avg %.2f | %s total\n",
			s.PassedCases, s.FailedCases, s.ErroredCases, s.ReviewCases,
			s.AvgScore, FormatDuration(summary.Duration))
	}
	fmt.Fprintf(w, "  p50 %s | p95 %s | tokens: %d in / %d out | cost $%.4f | cache hits %d\n",
		FormatDuration(s.LatencyP50), FormatDuration(s.LatencyP95),
		s.TotalInputTokens, s.TotalOutputTokens, s.TotalCost, s.CacheHits)
	fmt.Fprintf(w, "%s\n", sep)
}

// PrintVerbose writes detailed per-case output including full responses
// and per-assertion scores.
func PrintVerbose(w io.Writer, summary *result.RunSummary, color bool) {
	PrintSummaryTable(w, summary, color)

	fmt.Fprintf(w, "\n--- Detailed Results ---\n\n")

	for _, cr := range summary.Results {
		var status string
		if color {
			status = StatusLabel(cr)
		} else {
			status = StatusLabelPlain(cr)
		}

		fmt.Fprintf(w, "Case: %s [%s]\n", cr.CaseName, status)
		fmt.Fprintf(w, "  ID:       %s\n", cr.CaseID)
		fmt.Fprintf(w, "  Provider: %s\n", cr.ProviderID)
		fmt.Fprintf(w, "  Prompt:   %s\n", cr.Prompt)
		if cr.Model != "" {
			fmt.Fprintf(w, "  Model:    %s\n", cr.Model)
		}
		fmt.Fprintf(w, "  Score:    %.2f\n", cr.Score)
		fmt.Fprintf(w, "  Latency:  %s\n", FormatDuration(cr.Duration))
		fmt.Fprintf(w, "  Tokens:   %d in / %d out\n", cr.InputTokens, cr.OutputTokens)
		fmt.Fprintf(w, "  Cost:     $%.4f\n", cr.Cost)
		if cr.CacheHit {
			fmt.Fprintf(w, "  Cache:    hit\n")
		}

		if cr.Error != "" {
			fmt.Fprintf(w, "  Error:    %s\n", cr.Error)
		}

		for _, as := range cr.AssertionScores {
			mark := "ok"
			if as.Status != assert.StatusPass {
				mark = string(as.Status)
			}
			fmt.Fprintf(w, "  Assert:   %-14s [%s] %.2f %s\n", as.Name, mark, as.Score, as.Reason)
		}

		if cr.FinalResponse != "" {
			fmt.Fprintf(w, "  Response:\n")
			for _, line := range strings.Split(cr.FinalResponse, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteJSON writes the run summary as indented JSON.
func WriteJSON(w io.Writer, summary *result.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// WriteMarkdown writes the run summary as a Markdown table.
func WriteMarkdown(w io.Writer, summary *result.RunSummary) error {
	fmt.Fprintf(w, "# Eval run %s\n\n", summary.RunID)
	fmt.Fprintf(w, "Suite: **%s**  \n", summary.SuiteName)
	fmt.Fprintf(w, "Started: %s  \n", summary.StartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n\n", FormatDuration(summary.Duration))

	fmt.Fprintln(w, "| Case | Provider | Status | Score | Latency | Cost |")
	fmt.Fprintln(w, "|------|----------|--------|-------|---------|------|")
	for _, cr := range summary.Results {
		fmt.Fprintf(w, "| %s | %s | %s | %.2f | %s | $%.4f |\n",
			escapePipes(cr.CaseName), escapePipes(cr.ProviderID), StatusLabelPlain(cr),
			cr.Score, FormatDuration(cr.Duration), cr.Cost)
	}

	s := summary.Stats
	fmt.Fprintf(w, "\n%d passed, %d failed, %d errored, %d need review. ", s.PassedCases, s.FailedCases, s.ErroredCases, s.ReviewCases)
	fmt.Fprintf(w, "Avg score %.2f, pass rate %.0f%%.  \n", s.AvgScore, s.PassRate*100)
	fmt.Fprintf(w, "Tokens: %d in / %d out. Total cost $%.4f. Cache hits: %d.\n",
		s.TotalInputTokens, s.TotalOutputTokens, s.TotalCost, s.CacheHits)
	return nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

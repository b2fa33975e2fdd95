// Package diff compares two eval runs case by case so prompt or provider
// changes can be judged against a baseline.
package diff

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/prompteval/prompteval/pkg/result"
)

// Category classifies a case comparison.
type Category string

const (
	Improved  Category = "improved"
	Regressed Category = "regressed"
	Unchanged Category = "unchanged"
	New       Category = "new"
	Removed   Category = "removed"
)

// CaseDiff represents the comparison of a single case/provider pair
// between two runs.
type CaseDiff struct {
	Key        string   `json:"key"`
	CaseName   string   `json:"case_name"`
	ProviderID string   `json:"provider_id"`
	Category   Category `json:"category"`
	ScoreA     float64  `json:"score_a"`
	ScoreB     float64  `json:"score_b"`
	ScoreDelta float64  `json:"score_delta"`
	StatusA    string   `json:"status_a"`
	StatusB    string   `json:"status_b"`
}

// DiffResult holds the full comparison between two runs.
type DiffResult struct {
	RunA  string     `json:"run_a"`
	RunB  string     `json:"run_b"`
	Cases []CaseDiff `json:"cases"`
	Summary
}

// Summary holds counts by category.
type Summary struct {
	Improved  int `json:"improved"`
	Regressed int `json:"regressed"`
	Unchanged int `json:"unchanged"`
	New       int `json:"new"`
	Removed   int `json:"removed"`
}

// Compare produces a diff between two run summaries. Results are matched
// by case name plus provider ID, so the same case run against two
// providers diffs independently. The threshold is the minimum absolute
// score delta to classify a pair as improved or regressed; smaller moves
// count as unchanged.
func Compare(a, b *result.RunSummary, threshold float64) *DiffResult {
	dr := &DiffResult{
		RunA: a.RunID,
		RunB: b.RunID,
	}

	aMap := make(map[string]result.CaseResult, len(a.Results))
	for _, cr := range a.Results {
		aMap[cr.Key()] = cr
	}

	seen := make(map[string]bool, len(b.Results))
	for _, crB := range b.Results {
		key := crB.Key()
		seen[key] = true

		crA, inA := aMap[key]
		cd := CaseDiff{
			Key:        key,
			CaseName:   crB.CaseName,
			ProviderID: crB.ProviderID,
			ScoreB:     crB.Score,
			StatusB:    statusStr(crB),
		}

		if !inA {
			cd.Category = New
			dr.Summary.New++
		} else {
			cd.ScoreA = crA.Score
			cd.StatusA = statusStr(crA)
			cd.ScoreDelta = crB.Score - crA.Score

			if math.Abs(cd.ScoreDelta) <= threshold {
				cd.Category = Unchanged
				dr.Summary.Unchanged++
			} else if cd.ScoreDelta > 0 {
				cd.Category = Improved
				dr.Summary.Improved++
			} else {
				cd.Category = Regressed
				dr.Summary.Regressed++
			}
		}

		dr.Cases = append(dr.Cases, cd)
	}

	for _, crA := range a.Results {
		if !seen[crA.Key()] {
			dr.Cases = append(dr.Cases, CaseDiff{
				Key:        crA.Key(),
				CaseName:   crA.CaseName,
				ProviderID: crA.ProviderID,
				Category:   Removed,
				ScoreA:     crA.Score,
				StatusA:    statusStr(crA),
			})
			dr.Summary.Removed++
		}
	}

	return dr
}

// Filter returns a new DiffResult with only cases matching the given
// categories. Pass nil to include all.
func (dr *DiffResult) Filter(categories []Category) *DiffResult {
	if len(categories) == 0 {
		return dr
	}

	catSet := make(map[Category]bool, len(categories))
	for _, c := range categories {
		catSet[c] = true
	}

	filtered := &DiffResult{
		RunA: dr.RunA,
		RunB: dr.RunB,
	}
	for _, cd := range dr.Cases {
		if catSet[cd.Category] {
			filtered.Cases = append(filtered.Cases, cd)
		}
	}
	filtered.Summary = dr.Summary
	return filtered
}

// JSON serializes the diff result.
func (dr *DiffResult) JSON() ([]byte, error) {
	return json.MarshalIndent(dr, "", "  ")
}

// PrintTable writes a formatted diff table.
func (dr *DiffResult) PrintTable(w io.Writer) {
	sep := strings.Repeat("-", 96)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-40s  %-10s  %8s  %8s  %8s\n", "CASE @ PROVIDER", "CHANGE", "SCORE A", "SCORE B", "DELTA")
	fmt.Fprintf(w, "%s\n", sep)

	for _, cd := range dr.Cases {
		key := cd.Key
		if len(key) > 40 {
			key = key[:37] + "..."
		}

		var delta string
		switch cd.Category {
		case New:
			delta = "new"
		case Removed:
			delta = "removed"
		default:
			delta = fmt.Sprintf("%+.2f", cd.ScoreDelta)
		}

		fmt.Fprintf(w, "  %-40s  %-10s  %8.2f  %8.2f  %8s\n",
			key, string(cd.Category), cd.ScoreA, cd.ScoreB, delta)
	}

	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %d improved  %d regressed  %d unchanged  %d new  %d removed\n",
		dr.Summary.Improved, dr.Summary.Regressed, dr.Summary.Unchanged,
		dr.Summary.New, dr.Summary.Removed)
	fmt.Fprintf(w, "%s\n", sep)
}

func statusStr(cr result.CaseResult) string {
	if cr.Error != "" {
		return "error"
	}
	if cr.Status != "" {
		return string(cr.Status)
	}
	if cr.Pass {
		return "pass"
	}
	return "fail"
}

// Package result defines the persisted output of an eval run and the
// aggregate statistics computed over it.
package result

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prompteval/prompteval/pkg/assert"
)

// RunSummary is the top-level structure persisted to JSON for each eval run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	SuiteName string        `json:"suite_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Stats     Stats         `json:"stats"`
	Results   []CaseResult  `json:"results"`
}

// Stats holds aggregate statistics for the run.
type Stats struct {
	TotalCases        int           `json:"total_cases"`
	PassedCases       int           `json:"passed_cases"`
	FailedCases       int           `json:"failed_cases"`
	ErroredCases      int           `json:"errored_cases"`
	ReviewCases       int           `json:"review_cases"`
	PassRate          float64       `json:"pass_rate"`
	AvgScore          float64       `json:"avg_score"`
	LatencyP50        time.Duration `json:"latency_p50"`
	LatencyP95        time.Duration `json:"latency_p95"`
	TotalInputTokens  int           `json:"total_input_tokens"`
	TotalOutputTokens int           `json:"total_output_tokens"`
	TotalCost         float64       `json:"total_cost"`
	CacheHits         int           `json:"cache_hits"`
}

// CaseResult is the outcome of one case against one provider.
type CaseResult struct {
	CaseID          string                  `json:"case_id"`
	CaseName        string                  `json:"case_name"`
	ProviderID      string                  `json:"provider_id"`
	Model           string                  `json:"model"`
	Prompt          string                  `json:"prompt"`
	FinalResponse   string                  `json:"final_response"`
	Status          assert.Status           `json:"status"`
	Score           float64                 `json:"score"`
	Pass            bool                    `json:"pass"`
	CacheHit        bool                    `json:"cache_hit"`
	Cost            float64                 `json:"cost"`
	Error           string                  `json:"error,omitempty"`
	Duration        time.Duration           `json:"duration"`
	InputTokens     int                     `json:"input_tokens"`
	OutputTokens    int                     `json:"output_tokens"`
	AssertionScores []assert.AssertionScore `json:"assertion_scores,omitempty"`
}

// Key uniquely identifies a case/provider pair within a run. It is the join
// key used when diffing two runs.
func (r CaseResult) Key() string {
	return r.CaseName + " @ " + r.ProviderID
}

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// ComputeStats calculates aggregate statistics from a slice of CaseResults.
func ComputeStats(results []CaseResult) Stats {
	s := Stats{TotalCases: len(results)}
	if len(results) == 0 {
		return s
	}

	var totalScore float64
	var durations []time.Duration

	for _, r := range results {
		switch {
		case r.Error != "" || r.Status == assert.StatusError:
			s.ErroredCases++
		case r.Status == assert.StatusReview:
			s.ReviewCases++
		case r.Pass:
			s.PassedCases++
		default:
			s.FailedCases++
		}
		totalScore += r.Score
		durations = append(durations, r.Duration)
		s.TotalInputTokens += r.InputTokens
		s.TotalOutputTokens += r.OutputTokens
		s.TotalCost += r.Cost
		if r.CacheHit {
			s.CacheHits++
		}
	}

	graded := s.TotalCases - s.ErroredCases - s.ReviewCases
	if graded > 0 {
		s.PassRate = float64(s.PassedCases) / float64(graded)
	}
	s.AvgScore = totalScore / float64(s.TotalCases)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	s.LatencyP50 = percentile(durations, 0.5)
	s.LatencyP95 = percentile(durations, 0.95)

	return s
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac)
}

// ApplyGrade updates a single case result with a composite grading outcome
// and recomputes nothing; callers should Recompute once all grades are in.
func (s *RunSummary) ApplyGrade(index int, comp *assert.CompositeResult) error {
	if index < 0 || index >= len(s.Results) {
		return fmt.Errorf("grade index %d out of range (%d results)", index, len(s.Results))
	}
	r := &s.Results[index]
	r.Score = comp.CompositeScore
	r.Pass = comp.Pass
	r.Status = comp.Status
	r.AssertionScores = comp.Scores
	return nil
}

// Recompute refreshes the aggregate stats after results have been mutated,
// e.g. by grading or human review.
func (s *RunSummary) Recompute() {
	s.Stats = ComputeStats(s.Results)
}

// DefaultPath returns the default output file path for a run result.
func DefaultPath(outputDir, suiteName string, startTime time.Time) string {
	filename := fmt.Sprintf("%s-%s.json", startTime.Format("20060102-150405"), suiteName)
	return filepath.Join(outputDir, filename)
}

// Save writes the RunSummary as pretty-printed JSON to the given path.
// Parent directories are created automatically.
func (s *RunSummary) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result to %s: %w", path, err)
	}

	return nil
}

// LoadSummary reads a RunSummary from a JSON file.
func LoadSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file %s: %w", path, err)
	}

	var s RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing result file %s: %w", path, err)
	}

	return &s, nil
}

// ListRuns returns the result files in outputDir, newest first. File names
// embed the start timestamp so a reverse lexical sort orders by recency.
func ListRuns(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output directory %s: %w", outputDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(outputDir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

package evaltest

import "fmt"

// ScoreMatcher checks a graded score from AssertRubric or AssertCase.
// Scores are normalized to [0, 1]: composite assertion scores are
// weight-averaged and rubric grades are divided by the 1-5 scale max.
type ScoreMatcher interface {
	Match(score float64) bool
	String() string
}

// scoreAbove matches scores strictly above a threshold.
type scoreAbove struct {
	threshold float64
}

// ScoreAbove returns a matcher that passes when the normalized score is
// strictly greater than threshold.
func ScoreAbove(threshold float64) ScoreMatcher {
	return scoreAbove{threshold: threshold}
}

func (m scoreAbove) Match(score float64) bool {
	return score > m.threshold
}

func (m scoreAbove) String() string {
	return fmt.Sprintf("score > %.2f", m.threshold)
}

// scoreExact matches a score within floating point tolerance. Useful for
// deterministic assertions like equals or json-schema where the score is
// exactly 0 or 1.
type scoreExact struct {
	expected float64
}

// ScoreExact returns a matcher that passes when the score equals expected
// within a tolerance of 0.001.
func ScoreExact(expected float64) ScoreMatcher {
	return scoreExact{expected: expected}
}

func (m scoreExact) Match(score float64) bool {
	diff := score - m.expected
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.001
}

func (m scoreExact) String() string {
	return fmt.Sprintf("score == %.2f", m.expected)
}

// scoreAtLeast matches scores at or above a minimum.
type scoreAtLeast struct {
	min float64
}

// ScoreAtLeast returns a matcher that passes when the score is greater than
// or equal to min. This mirrors how a case's grading threshold is applied:
// a composite score equal to the threshold passes.
func ScoreAtLeast(min float64) ScoreMatcher {
	return scoreAtLeast{min: min}
}

func (m scoreAtLeast) Match(score float64) bool {
	return score >= m.min
}

func (m scoreAtLeast) String() string {
	return fmt.Sprintf("score >= %.2f", m.min)
}

// scoreBetween matches scores inside an inclusive range.
type scoreBetween struct {
	min, max float64
}

// ScoreBetween returns a matcher that passes when min <= score <= max.
// Handy for rubric grades where any middling answer is acceptable but a
// perfect score would signal an overfit prompt.
func ScoreBetween(min, max float64) ScoreMatcher {
	return scoreBetween{min: min, max: max}
}

func (m scoreBetween) Match(score float64) bool {
	return score >= m.min && score <= m.max
}

func (m scoreBetween) String() string {
	return fmt.Sprintf("%.2f <= score <= %.2f", m.min, m.max)
}

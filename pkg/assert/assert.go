// Package assert grades eval outputs. Each assertion scores one aspect of
// a case result; the composite scorer combines weighted assertion results
// into a pass/fail verdict.
package assert

import (
	"fmt"
	"time"

	"github.com/prompteval/prompteval/pkg/trace"
)

// Result captures the outcome of a single assertion.
type Result struct {
	Pass   bool    `json:"pass"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Input provides all the data an assertion needs to evaluate a case.
type Input struct {
	Output         string                `json:"output"`
	ExpectedOutput string                `json:"expected_output,omitempty"`
	Latency        time.Duration         `json:"latency,omitempty"`
	Cost           float64               `json:"cost,omitempty"`
	ToolCalls      []trace.ToolCallTrace `json:"tool_calls,omitempty"`
}

// Assertion defines the interface for grading eval outputs.
type Assertion interface {
	// Evaluate scores the case output and returns a result.
	Evaluate(input Input) (Result, error)

	// Name returns the assertion type identifier.
	Name() string
}

// Spec is the YAML representation of an assertion on a case.
type Spec struct {
	Type      string  `yaml:"type" json:"type"`
	Value     string  `yaml:"value,omitempty" json:"value,omitempty"`
	Schema    string  `yaml:"schema,omitempty" json:"schema,omitempty"`
	Weight    float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Max       float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Normalize bool    `yaml:"normalize,omitempty" json:"normalize,omitempty"`

	// Expected tool calls, used by the tool-called type.
	Expected []ExpectedToolCall `yaml:"expected,omitempty" json:"expected,omitempty"`
}

// FromSpec builds the assertion described by spec. Rubric assertions need
// a judge provider, supplied through deps by the runner.
func FromSpec(spec Spec, deps Deps) (Assertion, error) {
	switch spec.Type {
	case "equals":
		return &EqualsAssertion{NormalizeWhitespace: spec.Normalize}, nil
	case "contains":
		return &ContainsAssertion{Value: spec.Value}, nil
	case "icontains":
		return &ContainsAssertion{Value: spec.Value, CaseInsensitive: true}, nil
	case "not-contains":
		return &ContainsAssertion{Value: spec.Value, Negate: true}, nil
	case "starts-with":
		return &StartsWithAssertion{Value: spec.Value}, nil
	case "regex":
		return &RegexAssertion{Pattern: spec.Value}, nil
	case "is-json":
		return &IsJSONAssertion{Schema: spec.Schema}, nil
	case "latency":
		return &LatencyAssertion{MaxMillis: spec.Max}, nil
	case "cost":
		return &CostAssertion{MaxUSD: spec.Max}, nil
	case "tool-called":
		return &ToolCallAssertion{Expected: spec.Expected}, nil
	case "llm-rubric":
		if deps.RubricJudge == nil {
			return nil, fmt.Errorf("llm-rubric assertion requires a judge provider")
		}
		return deps.RubricJudge(spec.Value), nil
	case "human-review":
		return &HumanReviewAssertion{Reason: spec.Value}, nil
	default:
		return nil, fmt.Errorf("unknown assertion type %q", spec.Type)
	}
}

// Deps carries runtime dependencies for assertion construction.
type Deps struct {
	// RubricJudge builds an llm-rubric assertion for the given rubric text.
	RubricJudge func(rubric string) Assertion
}

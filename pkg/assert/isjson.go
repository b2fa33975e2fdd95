package assert

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// IsJSONAssertion validates that the output is valid JSON, optionally
// conforming to a JSON Schema.
type IsJSONAssertion struct {
	Schema string `json:"schema" yaml:"schema"`
}

// Name returns the assertion type identifier.
func (a *IsJSONAssertion) Name() string { return "is-json" }

// Evaluate parses the output as JSON and, when a schema is configured,
// validates it against that schema.
func (a *IsJSONAssertion) Evaluate(input Input) (Result, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(input.Output), &v); err != nil {
		return Result{
			Pass:   false,
			Score:  0.0,
			Reason: fmt.Sprintf("output is not valid JSON: %v", err),
		}, nil
	}

	if a.Schema == "" {
		return Result{
			Pass:   true,
			Score:  1.0,
			Reason: "output is valid JSON",
		}, nil
	}

	var schemaDoc interface{}
	if err := json.Unmarshal([]byte(a.Schema), &schemaDoc); err != nil {
		return Result{}, fmt.Errorf("invalid JSON schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return Result{}, fmt.Errorf("invalid JSON schema: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return Result{}, fmt.Errorf("compiling JSON schema: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return Result{
			Pass:   false,
			Score:  0.0,
			Reason: fmt.Sprintf("output does not match schema: %v", err),
		}, nil
	}

	return Result{
		Pass:   true,
		Score:  1.0,
		Reason: "output matches JSON schema",
	}, nil
}

package suite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prompteval/prompteval/pkg/assert"
)

const basicSuiteYAML = `name: test-suite
description: A test suite
prompt: default
providers:
  - openai:gpt-4o-mini
  - anthropic:claude-3-5-haiku-20241022
default_asserts:
  - type: icontains
    value: hello
    weight: 1.0
default_mocks:
  - tool_name: search
    default_response:
      content: "mock result"
cases:
  - name: case-one
    id: c1
    vars:
      question: "Say hello"
    tags:
      - greeting
      - simple
  - name: case-two
    id: c2
    vars:
      question: "Do math"
    expected_output: "42"
    threshold: 0.8
    timeout: 30s
    tags:
      - math
    asserts:
      - type: equals
        weight: 1.0
    mocks:
      - tool_name: calc
        default_response:
          content: "42"
`

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "suite.yaml", basicSuiteYAML)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if s.Name != "test-suite" {
		t.Errorf("Name = %q, want %q", s.Name, "test-suite")
	}
	if s.Description != "A test suite" {
		t.Errorf("Description = %q, want %q", s.Description, "A test suite")
	}
	if s.Prompt != "default" {
		t.Errorf("Prompt = %q, want %q", s.Prompt, "default")
	}
	if len(s.Providers) != 2 || s.Providers[0] != "openai:gpt-4o-mini" {
		t.Errorf("Providers = %v, want two IDs", s.Providers)
	}
	if len(s.Cases) != 2 {
		t.Fatalf("len(Cases) = %d, want 2", len(s.Cases))
	}
	if s.Cases[0].Name != "case-one" {
		t.Errorf("Cases[0].Name = %q, want %q", s.Cases[0].Name, "case-one")
	}
	if s.Cases[0].ID != "c1" {
		t.Errorf("Cases[0].ID = %q, want %q", s.Cases[0].ID, "c1")
	}
	if s.Cases[0].Vars["question"] != "Say hello" {
		t.Errorf("Cases[0].Vars[question] = %v", s.Cases[0].Vars["question"])
	}
	if s.Cases[1].ExpectedOutput != "42" {
		t.Errorf("Cases[1].ExpectedOutput = %q, want %q", s.Cases[1].ExpectedOutput, "42")
	}
	if s.Cases[1].Threshold != 0.8 {
		t.Errorf("Cases[1].Threshold = %f, want 0.8", s.Cases[1].Threshold)
	}
	if s.Cases[1].Timeout != 30*time.Second {
		t.Errorf("Cases[1].Timeout = %v, want 30s", s.Cases[1].Timeout)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/suite.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "bad.yaml", "name: test\n\t- broken:\n\t\tindent")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
}

func TestDefaultMerging(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "suite.yaml", basicSuiteYAML)

	s, err := Load(filepath.Join(dir, "suite.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// case-one has no asserts/mocks, should inherit defaults.
	c1 := s.Cases[0]
	if len(c1.Asserts) != 1 {
		t.Fatalf("case-one: len(Asserts) = %d, want 1 (from defaults)", len(c1.Asserts))
	}
	if c1.Asserts[0].Type != "icontains" {
		t.Errorf("case-one: Asserts[0].Type = %q, want %q", c1.Asserts[0].Type, "icontains")
	}
	if len(c1.Mocks) != 1 {
		t.Fatalf("case-one: len(Mocks) = %d, want 1 (from defaults)", len(c1.Mocks))
	}
	if c1.Mocks[0].ToolName != "search" {
		t.Errorf("case-one: Mocks[0].ToolName = %q, want %q", c1.Mocks[0].ToolName, "search")
	}

	// case-two specifies its own asserts and mocks, should NOT inherit defaults.
	c2 := s.Cases[1]
	if len(c2.Asserts) != 1 {
		t.Fatalf("case-two: len(Asserts) = %d, want 1", len(c2.Asserts))
	}
	if c2.Asserts[0].Type != "equals" {
		t.Errorf("case-two: Asserts[0].Type = %q, want %q", c2.Asserts[0].Type, "equals")
	}
	if len(c2.Mocks) != 1 {
		t.Fatalf("case-two: len(Mocks) = %d, want 1", len(c2.Mocks))
	}
	if c2.Mocks[0].ToolName != "calc" {
		t.Errorf("case-two: Mocks[0].ToolName = %q, want %q", c2.Mocks[0].ToolName, "calc")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeTempFile(t, dir, "alpha.yaml", "name: alpha\ncases:\n  - name: a1\n")
	writeTempFile(t, dir, "beta.yml", "name: beta\ncases:\n  - name: b1\n  - name: b2\n")
	writeTempFile(t, dir, "skip.txt", "not yaml")

	// Subdirectory should be skipped.
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	suites, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}

	if len(suites) != 2 {
		t.Fatalf("LoadDir() returned %d suites, want 2", len(suites))
	}

	names := map[string]int{}
	for _, s := range suites {
		names[s.Name] = len(s.Cases)
	}
	if names["alpha"] != 1 {
		t.Errorf("alpha case count = %d, want 1", names["alpha"])
	}
	if names["beta"] != 2 {
		t.Errorf("beta case count = %d, want 2", names["beta"])
	}
}

func TestLoadDir_NotFound(t *testing.T) {
	_, err := LoadDir("/nonexistent/dir")
	if err == nil {
		t.Fatal("LoadDir() expected error for missing directory, got nil")
	}
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "suites")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTempFile(t, sub, "alpha.yaml", "name: alpha\ncases:\n  - name: a1\n")
	single := writeTempFile(t, dir, "single.yaml", "name: single\ncases:\n  - name: s1\n")

	suites, err := LoadPaths([]string{sub, single})
	if err != nil {
		t.Fatalf("LoadPaths() error: %v", err)
	}
	if len(suites) != 2 {
		t.Fatalf("LoadPaths() returned %d suites, want 2", len(suites))
	}
	if suites[0].Name != "alpha" || suites[1].Name != "single" {
		t.Errorf("suites = [%s, %s], want [alpha, single]", suites[0].Name, suites[1].Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		suite   EvalSuite
		wantErr bool
	}{
		{
			name: "valid suite",
			suite: EvalSuite{
				Name:  "test",
				Cases: []EvalCase{{Name: "c1"}},
			},
			wantErr: false,
		},
		{
			name:    "missing name",
			suite:   EvalSuite{Cases: []EvalCase{{Name: "c1"}}},
			wantErr: true,
		},
		{
			name:    "no cases",
			suite:   EvalSuite{Name: "test"},
			wantErr: true,
		},
		{
			name: "case missing name",
			suite: EvalSuite{
				Name:  "test",
				Cases: []EvalCase{{ID: "c1"}},
			},
			wantErr: true,
		},
		{
			name: "assert missing type",
			suite: EvalSuite{
				Name: "test",
				Cases: []EvalCase{{
					Name:    "c1",
					Asserts: []assert.Spec{{Value: "x"}},
				}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.suite.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilterByTag(t *testing.T) {
	s := &EvalSuite{
		Name: "filter-test",
		Cases: []EvalCase{
			{Name: "c1", Tags: []string{"greeting", "simple"}},
			{Name: "c2", Tags: []string{"math"}},
			{Name: "c3", Tags: []string{"greeting", "complex"}},
			{Name: "c4", Tags: nil},
		},
	}

	t.Run("filter greeting", func(t *testing.T) {
		filtered := s.FilterByTag([]string{"greeting"})
		if len(filtered.Cases) != 2 {
			t.Fatalf("len(Cases) = %d, want 2", len(filtered.Cases))
		}
		if filtered.Cases[0].Name != "c1" || filtered.Cases[1].Name != "c3" {
			t.Errorf("Cases = [%s, %s], want [c1, c3]", filtered.Cases[0].Name, filtered.Cases[1].Name)
		}
	})

	t.Run("filter math", func(t *testing.T) {
		filtered := s.FilterByTag([]string{"math"})
		if len(filtered.Cases) != 1 {
			t.Fatalf("len(Cases) = %d, want 1", len(filtered.Cases))
		}
		if filtered.Cases[0].Name != "c2" {
			t.Errorf("Cases[0].Name = %q, want %q", filtered.Cases[0].Name, "c2")
		}
	})

	t.Run("filter multiple tags", func(t *testing.T) {
		filtered := s.FilterByTag([]string{"math", "complex"})
		if len(filtered.Cases) != 2 {
			t.Fatalf("len(Cases) = %d, want 2", len(filtered.Cases))
		}
	})

	t.Run("empty tag list returns all", func(t *testing.T) {
		filtered := s.FilterByTag(nil)
		if len(filtered.Cases) != 4 {
			t.Fatalf("len(Cases) = %d, want 4", len(filtered.Cases))
		}
	})

	t.Run("no matching tag", func(t *testing.T) {
		filtered := s.FilterByTag([]string{"nonexistent"})
		if len(filtered.Cases) != 0 {
			t.Fatalf("len(Cases) = %d, want 0", len(filtered.Cases))
		}
	})
}

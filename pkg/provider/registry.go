package provider

import (
	"fmt"
	"os"
	"strings"
)

// Spec carries the connectivity settings needed to build an adapter for a
// single provider ID.
type Spec struct {
	// ID is the provider identifier, e.g. "openai:gpt-4o-mini",
	// "anthropic:claude-3-5-haiku-20241022", "google:gemini-2.5-flash",
	// "http:https://example.com/generate" or "echo".
	ID string

	// APIKeyEnv overrides the family's default API key environment variable.
	APIKeyEnv string

	// BaseURL overrides the family's default endpoint.
	BaseURL string

	// Headers are added to every request.
	Headers map[string]string

	// RPS throttles the adapter when > 0.
	RPS float64

	// HTTP settings, used only by the generic HTTP family.
	Method            string
	BodyTemplate      string
	TransformResponse string
}

// family holds the per-vendor defaults for OpenAI-compatible and native
// adapters.
type family struct {
	keyEnv     string
	altKeyEnv  string
	baseURL    string
	compatible bool // rides the OpenAI Chat Completions codec
}

var families = map[string]family{
	"openai":    {keyEnv: "OPENAI_API_KEY", baseURL: defaultOpenAIURL, compatible: true},
	"alibaba":   {keyEnv: "DASHSCOPE_API_KEY", baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions", compatible: true},
	"deepseek":  {keyEnv: "DEEPSEEK_API_KEY", baseURL: "https://api.deepseek.com/chat/completions", compatible: true},
	"anthropic": {keyEnv: "ANTHROPIC_API_KEY", baseURL: defaultAnthropicURL},
	"google":    {keyEnv: "GOOGLE_API_KEY", altKeyEnv: "GEMINI_API_KEY", baseURL: defaultGoogleURL},
	"gemini":    {keyEnv: "GOOGLE_API_KEY", altKeyEnv: "GEMINI_API_KEY", baseURL: defaultGoogleURL},
}

// ParseID splits a provider ID into family and model. Intermediate path
// segments like "chat" or "messages" are tolerated:
// "anthropic:messages:claude-3-5-haiku" parses to ("anthropic",
// "claude-3-5-haiku"). URLs parse to the "http" family with the URL as
// the model part.
func ParseID(id string) (fam, model string, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("provider ID is empty")
	}

	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return "http", id, nil
	}
	if rest, ok := strings.CutPrefix(id, "http:"); ok {
		return "http", rest, nil
	}

	parts := strings.SplitN(id, ":", 2)
	fam = parts[0]
	if len(parts) == 2 {
		model = parts[1]
	}

	// Drop a leading API-surface segment ("chat", "messages").
	if sub, rest, found := strings.Cut(model, ":"); found && (sub == "chat" || sub == "messages") {
		model = rest
	}

	if fam == "echo" {
		return "echo", "", nil
	}
	if _, ok := families[fam]; !ok && fam != "http" {
		return "", "", fmt.Errorf("unknown provider family %q in ID %q", fam, id)
	}
	if fam != "http" && model == "" {
		return "", "", fmt.Errorf("provider ID %q is missing a model", id)
	}
	return fam, model, nil
}

// Build constructs the adapter for the given spec. API keys are read from
// the environment at build time and never persisted.
func Build(spec Spec, policy RetryPolicy) (Provider, error) {
	fam, model, err := ParseID(spec.ID)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithRetryPolicy(policy)}
	if spec.BaseURL != "" {
		opts = append(opts, WithBaseURL(spec.BaseURL))
	}
	if spec.RPS > 0 {
		opts = append(opts, WithRateLimit(spec.RPS))
	}
	for k, v := range spec.Headers {
		opts = append(opts, WithHeader(k, v))
	}

	switch fam {
	case "echo":
		return NewEchoProvider(), nil

	case "http":
		return NewHTTPProvider(spec.ID, HTTPProviderConfig{
			URL:               model,
			Method:            spec.Method,
			Headers:           spec.Headers,
			BodyTemplate:      spec.BodyTemplate,
			TransformResponse: spec.TransformResponse,
		}, opts...)

	case "anthropic":
		key, err := resolveKey(spec, families[fam])
		if err != nil {
			return nil, err
		}
		return NewAnthropicProvider(spec.ID, model, key, opts...), nil

	case "google", "gemini":
		key, err := resolveKey(spec, families[fam])
		if err != nil {
			return nil, err
		}
		return NewGoogleProvider(spec.ID, model, key, opts...), nil

	default:
		f := families[fam]
		key, err := resolveKey(spec, f)
		if err != nil {
			return nil, err
		}
		if spec.BaseURL == "" && f.compatible {
			opts = append(opts, WithBaseURL(f.baseURL))
		}
		return NewOpenAIProvider(spec.ID, model, key, opts...), nil
	}
}

func resolveKey(spec Spec, f family) (string, error) {
	envName := spec.APIKeyEnv
	if envName == "" {
		envName = f.keyEnv
	}
	if key := os.Getenv(envName); key != "" {
		return key, nil
	}
	if spec.APIKeyEnv == "" && f.altKeyEnv != "" {
		if key := os.Getenv(f.altKeyEnv); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("provider %q: environment variable %s is not set", spec.ID, envName)
}

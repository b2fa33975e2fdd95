package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/template"
)

// HTTPProviderConfig describes a generic JSON-over-HTTP provider.
type HTTPProviderConfig struct {
	URL     string
	Method  string
	Headers map[string]string

	// BodyTemplate is a Go text/template rendered with the variables
	// "prompt", "system" and "model" to produce the request body.
	BodyTemplate string

	// TransformResponse is a dot-path selector applied to the response
	// JSON to extract the output string, e.g. "choices.0.message.content".
	// Empty means the whole response body is the output.
	TransformResponse string
}

// HTTPProvider calls an arbitrary HTTP endpoint described by config.
type HTTPProvider struct {
	id   string
	cfg  HTTPProviderConfig
	tmpl *template.Template
	settings
}

// NewHTTPProvider creates a generic HTTP provider. The body template is
// parsed eagerly so configuration errors surface at build time.
func NewHTTPProvider(id string, cfg HTTPProviderConfig, opts ...Option) (*HTTPProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http provider %q: url is required", id)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.BodyTemplate == "" {
		cfg.BodyTemplate = `{"prompt": {{.prompt | printf "%q"}}}`
	}

	tmpl, err := template.New(id).Option("missingkey=error").Parse(cfg.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("http provider %q: parsing body template: %w", id, err)
	}

	p := &HTTPProvider{
		id:       id,
		cfg:      cfg,
		tmpl:     tmpl,
		settings: applyOptions(opts),
	}
	return p, nil
}

// ID returns the full provider identifier.
func (p *HTTPProvider) ID() string { return p.id }

// Complete renders the body template from the request and posts it to the
// configured endpoint, extracting the output via the transform selector.
func (p *HTTPProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	body, err := p.renderBody(req)
	if err != nil {
		return nil, fmt.Errorf("rendering request body: %w", err)
	}

	return withRetry(ctx, p.policy, p.id, func() (*Response, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return p.doRequest(ctx, body)
	})
}

func (p *HTTPProvider) renderBody(req *Request) ([]byte, error) {
	vars := map[string]interface{}{
		"prompt": lastUserContent(req.Messages),
		"system": req.System,
		"model":  req.Model,
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func (p *HTTPProvider) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, p.cfg.Method, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("sending HTTP request: %w", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("reading response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &apiError{Status: httpResp.StatusCode, Message: string(respBody)}
	}

	content, err := extractByPath(respBody, p.cfg.TransformResponse)
	if err != nil {
		return nil, fmt.Errorf("transforming response: %w", err)
	}

	return &Response{
		Content:    content,
		StopReason: "stop",
		Raw:        respBody,
	}, nil
}

// extractByPath walks a dot-separated selector through parsed JSON.
// Numeric segments index arrays. Non-string leaves are re-encoded as JSON.
func extractByPath(body []byte, path string) (string, error) {
	if path == "" {
		return string(body), nil
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("response is not valid JSON: %w", err)
	}

	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return "", fmt.Errorf("selector %q: key %q not found", path, seg)
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return "", fmt.Errorf("selector %q: %q is not an array index", path, seg)
			}
			if idx < 0 || idx >= len(node) {
				return "", fmt.Errorf("selector %q: index %d out of range (len %d)", path, idx, len(node))
			}
			cur = node[idx]
		default:
			return "", fmt.Errorf("selector %q: cannot descend into %T at %q", path, cur, seg)
		}
	}

	if s, ok := cur.(string); ok {
		return s, nil
	}
	out, err := json.Marshal(cur)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicVersion = "2023-06-01"
	defaultAnthropicTokens  = 4096
)

// AnthropicProvider implements Provider for the Anthropic Messages API.
type AnthropicProvider struct {
	id     string
	model  string
	apiKey string
	settings
}

// NewAnthropicProvider creates an Anthropic provider bound to the given model.
func NewAnthropicProvider(id, model, apiKey string, opts ...Option) *AnthropicProvider {
	p := &AnthropicProvider{
		id:       id,
		model:    model,
		apiKey:   apiKey,
		settings: applyOptions(opts),
	}
	if p.baseURL == "" {
		p.baseURL = defaultAnthropicURL
	}
	return p
}

// ID returns the full provider identifier.
func (p *AnthropicProvider) ID() string { return p.id }

// anthropicRequest is the Anthropic Messages API request body.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// anthropicResponse is the Anthropic Messages API response body.
type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicContentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a request to the Anthropic Messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
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

func (p *AnthropicProvider) buildRequestBody(req *Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicTokens
	}

	ar := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  convertToAnthropicMessages(req.Messages),
	}

	if req.Temperature != 0 {
		t := req.Temperature
		ar.Temperature = &t
	}
	if req.TopP != 0 {
		tp := req.TopP
		ar.TopP = &tp
	}

	for _, tool := range req.Tools {
		ar.Tools = append(ar.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	return json.Marshal(ar)
}

func convertToAnthropicMessages(msgs []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		am := anthropicMessage{Role: m.Role}

		if m.Role == "tool" {
			// Tool result messages use structured content for Anthropic.
			am.Role = "user"
			am.Content = []map[string]interface{}{
				{
					"type":        "tool_result",
					"tool_use_id": m.ToolCallID,
					"content":     m.Content,
				},
			}
		} else if len(m.ToolCalls) > 0 {
			// Assistant messages with tool calls use content blocks.
			blocks := make([]map[string]interface{}, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, map[string]interface{}{
					"type": "text",
					"text": m.Content,
				})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": tc.Parameters,
				})
			}
			am.Content = blocks
		} else {
			am.Content = m.Content
		}

		out = append(out, am)
	}
	return out
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", defaultAnthropicVersion)
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

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var apiErr anthropicErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &apiError{Status: httpResp.StatusCode, Message: msg}
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	resp := parseAnthropicResponse(&ar)
	resp.Raw = respBody
	return resp, nil
}

func parseAnthropicResponse(ar *anthropicResponse) *Response {
	resp := &Response{
		StopReason: ar.StopReason,
		Usage: Usage{
			InputTokens:  ar.Usage.InputTokens,
			OutputTokens: ar.Usage.OutputTokens,
		},
	}

	var textParts []byte
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			if len(textParts) > 0 {
				textParts = append(textParts, '\n')
			}
			textParts = append(textParts, block.Text...)
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:         block.ID,
				Name:       block.Name,
				Parameters: block.Input,
			})
		}
	}
	resp.Content = string(textParts)

	return resp
}

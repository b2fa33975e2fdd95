package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements Provider for the OpenAI Chat Completions API
// and for OpenAI-compatible vendors (DashScope compatible mode, DeepSeek)
// via a different base URL.
type OpenAIProvider struct {
	id     string
	model  string
	apiKey string
	settings
}

// NewOpenAIProvider creates an OpenAI provider bound to the given model.
func NewOpenAIProvider(id, model, apiKey string, opts ...Option) *OpenAIProvider {
	p := &OpenAIProvider{
		id:       id,
		model:    model,
		apiKey:   apiKey,
		settings: applyOptions(opts),
	}
	if p.baseURL == "" {
		p.baseURL = defaultOpenAIURL
	}
	return p
}

// ID returns the full provider identifier.
func (p *OpenAIProvider) ID() string { return p.id }

// openaiRequest is the OpenAI Chat Completions API request body.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiCallFunction `json:"function"`
}

type openaiCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// openaiResponse is the OpenAI Chat Completions API response body.
type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends a request to the Chat Completions API.
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
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

func (p *OpenAIProvider) buildRequestBody(req *Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	or := openaiRequest{
		Model:    model,
		Messages: convertToOpenAIMessages(req.System, req.Messages),
	}

	if req.Temperature != 0 {
		t := req.Temperature
		or.Temperature = &t
	}
	if req.TopP != 0 {
		tp := req.TopP
		or.TopP = &tp
	}
	if req.MaxTokens != 0 {
		m := req.MaxTokens
		or.MaxTokens = &m
	}

	for _, tool := range req.Tools {
		or.Tools = append(or.Tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return json.Marshal(or)
}

func convertToOpenAIMessages(system string, msgs []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(msgs)+1)

	// OpenAI uses a system message in the messages array.
	if system != "" {
		s := system
		out = append(out, openaiMessage{Role: "system", Content: &s})
	}

	for _, m := range msgs {
		om := openaiMessage{Role: m.Role}

		if m.Content != "" {
			c := m.Content
			om.Content = &c
		}

		if m.Role == "tool" {
			om.ToolCallID = m.ToolCallID
		}

		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Parameters)
			om.ToolCalls = append(om.ToolCalls, openaiToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openaiCallFunction{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}

		out = append(out, om)
	}
	return out
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
		var apiErr openaiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &apiError{Status: httpResp.StatusCode, Message: msg}
	}

	var or openaiResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	resp := parseOpenAIResponse(&or)
	resp.Raw = respBody
	return resp, nil
}

func parseOpenAIResponse(or *openaiResponse) *Response {
	resp := &Response{
		Usage: Usage{
			InputTokens:  or.Usage.PromptTokens,
			OutputTokens: or.Usage.CompletionTokens,
		},
	}

	if len(or.Choices) == 0 {
		return resp
	}

	choice := or.Choices[0]
	resp.StopReason = choice.FinishReason

	if choice.Message.Content != nil {
		resp.Content = *choice.Message.Content
	}

	for _, tc := range choice.Message.ToolCalls {
		var params map[string]interface{}
		json.Unmarshal([]byte(tc.Function.Arguments), &params)
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: params,
		})
	}

	return resp
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultGoogleURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider implements Provider for the Gemini generateContent API.
type GoogleProvider struct {
	id     string
	model  string
	apiKey string
	settings
}

// NewGoogleProvider creates a Gemini provider bound to the given model.
func NewGoogleProvider(id, model, apiKey string, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{
		id:       id,
		model:    model,
		apiKey:   apiKey,
		settings: applyOptions(opts),
	}
	if p.baseURL == "" {
		p.baseURL = defaultGoogleURL
	}
	return p
}

// ID returns the full provider identifier.
func (p *GoogleProvider) ID() string { return p.id }

// googleRequest is the Gemini generateContent request body.
type googleRequest struct {
	SystemInstruction *googleContent   `json:"system_instruction,omitempty"`
	Contents          []googleContent  `json:"contents"`
	Tools             []googleToolDecl `json:"tools,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *googleFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResponse `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type googleFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type googleToolDecl struct {
	FunctionDeclarations []googleFunctionDecl `json:"functionDeclarations"`
}

type googleFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type googleGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// googleResponse is the Gemini generateContent response body.
type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete sends a request to the Gemini generateContent API.
func (p *GoogleProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.baseURL, "/"), model)

	return withRetry(ctx, p.policy, p.id, func() (*Response, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return p.doRequest(ctx, url, body)
	})
}

func (p *GoogleProvider) buildRequestBody(req *Request) ([]byte, error) {
	gr := googleRequest{
		Contents: convertToGoogleContents(req.Messages),
	}

	if req.System != "" {
		gr.SystemInstruction = &googleContent{
			Parts: []googlePart{{Text: req.System}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]googleFunctionDecl, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, googleFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		gr.Tools = []googleToolDecl{{FunctionDeclarations: decls}}
	}

	var gc googleGenConfig
	if req.Temperature != 0 {
		t := req.Temperature
		gc.Temperature = &t
	}
	if req.TopP != 0 {
		tp := req.TopP
		gc.TopP = &tp
	}
	if req.MaxTokens != 0 {
		m := req.MaxTokens
		gc.MaxOutputTokens = &m
	}
	if gc != (googleGenConfig{}) {
		gr.GenerationConfig = &gc
	}

	return json.Marshal(gr)
}

func convertToGoogleContents(msgs []Message) []googleContent {
	out := make([]googleContent, 0, len(msgs))
	for _, m := range msgs {
		gc := googleContent{}

		switch m.Role {
		case "assistant":
			gc.Role = "model"
			if m.Content != "" {
				gc.Parts = append(gc.Parts, googlePart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				gc.Parts = append(gc.Parts, googlePart{
					FunctionCall: &googleFunctionCall{Name: tc.Name, Args: tc.Parameters},
				})
			}
		case "tool":
			// Gemini returns tool output to the model via functionResponse
			// parts on a user turn. The tool name rides in ToolCallID since
			// the API has no separate call IDs.
			gc.Role = "user"
			gc.Parts = append(gc.Parts, googlePart{
				FunctionResponse: &googleFunctionResponse{
					Name:     m.ToolCallID,
					Response: map[string]interface{}{"content": m.Content},
				},
			})
		default:
			gc.Role = "user"
			gc.Parts = append(gc.Parts, googlePart{Text: m.Content})
		}

		out = append(out, gc)
	}
	return out
}

func (p *GoogleProvider) doRequest(ctx context.Context, url string, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", p.apiKey)
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
		var apiErr googleErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &apiError{Status: httpResp.StatusCode, Message: msg}
	}

	var gr googleResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	resp := parseGoogleResponse(&gr)
	resp.Raw = respBody
	return resp, nil
}

func parseGoogleResponse(gr *googleResponse) *Response {
	resp := &Response{
		Usage: Usage{
			InputTokens:  gr.UsageMetadata.PromptTokenCount,
			OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
		},
	}

	if len(gr.Candidates) == 0 {
		return resp
	}

	cand := gr.Candidates[0]
	resp.StopReason = strings.ToLower(cand.FinishReason)

	var textParts []byte
	for i, part := range cand.Content.Parts {
		if part.Text != "" {
			if len(textParts) > 0 {
				textParts = append(textParts, '\n')
			}
			textParts = append(textParts, part.Text...)
		}
		if part.FunctionCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:         fmt.Sprintf("call-%d", i),
				Name:       part.FunctionCall.Name,
				Parameters: part.FunctionCall.Args,
			})
		}
	}
	resp.Content = string(textParts)

	return resp
}

package provider

import "context"

// EchoProvider returns the rendered user prompt as the response. It is the
// zero-config provider used to smoke-test eval wiring without an API key.
type EchoProvider struct{}

// NewEchoProvider creates an echo provider.
func NewEchoProvider() *EchoProvider { return &EchoProvider{} }

// ID returns "echo".
func (p *EchoProvider) ID() string { return "echo" }

// Complete returns the last user message verbatim.
func (p *EchoProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{
		Content:    lastUserContent(req.Messages),
		StopReason: "stop",
	}, nil
}

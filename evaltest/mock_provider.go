package evaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/prompteval/prompteval/pkg/provider"
)

// MockProvider is a simple provider that returns pre-configured responses
// in sequence. It is safe for concurrent use.
type MockProvider struct {
	responses []provider.Response
	mu        sync.Mutex
	idx       int
}

// NewMockProvider creates a MockProvider that returns the given responses in
// order. Once all responses are consumed, subsequent calls return an error.
func NewMockProvider(responses ...provider.Response) *MockProvider {
	return &MockProvider{
		responses: responses,
	}
}

// Complete returns the next pre-configured response. It ignores the request
// contents entirely; responses are returned in the order they were provided.
func (m *MockProvider) Complete(_ context.Context, _ *provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idx >= len(m.responses) {
		return nil, fmt.Errorf("mock provider: no more responses (consumed %d/%d)", m.idx, len(m.responses))
	}

	resp := m.responses[m.idx]
	m.idx++
	return &resp, nil
}

// ID returns "mock".
func (m *MockProvider) ID() string { return "mock" }

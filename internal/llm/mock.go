package llm

import (
	"context"
	"sync"
)

// MockClient replays a canned Response or Err and records every prompt.
type MockClient struct {
	Response *Response
	Err      error

	mu      sync.Mutex
	prompts []string
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// Calls returns a copy of the prompts seen so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Package testutils provides fakes and fixtures shared by the package tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/treadpick/internal/ports"
)

// MockLLMClient answers prompts with canned responses chosen by substring
// match. It is safe for concurrent use.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	fallback  string
	err       error
	prompts   []string
}

// MockResponse pairs a case-insensitive prompt substring with a response.
type MockResponse struct {
	Pattern  string
	Response string
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

// NewMockLLMClient returns a client whose default answer is a valid
// explanation JSON object.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:    model,
		fallback: `{"explanation": "Balanced choice with predictable grip and low drag."}`,
	}
}

// AddResponse registers a response. Earlier registrations win.
func (m *MockLLMClient) AddResponse(r MockResponse) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// FailWith makes every call return err.
func (m *MockLLMClient) FailWith(err error) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, _ map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return m.fallback, nil
}

// EstimateTokens implements ports.LLMClient.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string { return m.model }

// Prompts returns every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

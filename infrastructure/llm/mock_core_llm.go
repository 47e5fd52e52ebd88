package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCoreLLM is a scriptable CoreLLM for middleware and explainer tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response  string
	TokensIn  int
	TokensOut int
	Model     string

	// Err is returned from every call when FailFirst is zero, or from the
	// first FailFirst calls otherwise.
	Err       error
	FailFirst int

	// Delay is waited before responding, honoring ctx cancellation.
	Delay time.Duration

	Calls      int
	LastPrompt string
	LastOpts   map[string]any
}

// NewMockCoreLLM returns a mock that answers "test response".
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{Response: "test response", TokensIn: 10, TokensOut: 20, Model: "test-model"}
}

var errSimulated = errors.New("simulated failure")

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.Calls++
	call := m.Calls
	m.LastPrompt = prompt
	m.LastOpts = opts
	delay, failFirst, err := m.Delay, m.FailFirst, m.Err
	resp, in, out := m.Response, m.TokensIn, m.TokensOut
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	switch {
	case failFirst > 0 && call <= failFirst:
		if err == nil {
			err = errSimulated
		}
		return "", 0, 0, err
	case failFirst == 0 && err != nil:
		return "", 0, 0, err
	}
	return resp, in, out, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel implements CoreLLM.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// CallCount returns the number of DoRequest calls so far.
func (m *MockCoreLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

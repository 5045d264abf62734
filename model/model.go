package model

import (
	"context"
	"fmt"
	"sync"
)

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "ollama", "mock"
	// Adapter names the fine-tuned adapter layered on the model, if any.
	// It participates in cache keys.
	Adapter string `json:"adapter,omitempty"`
}

// Generator is the minimal interface required by agents and the
// orchestrator to drive generation.
type Generator interface {
	// Generate returns the completion for a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// BatchGenerate returns one output per prompt in the same order.
	// Individual failures yield an empty string at that position.
	BatchGenerate(ctx context.Context, prompts []string) ([]string, error)
	// Info returns information about the generator implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Generator useful for tests and examples.
type MockModel struct {
	mu         sync.Mutex
	info       Info
	responses  map[string]string
	errs       map[string]error
	fallback   *string
	batchErr   error
	calls      []string
	batchCalls int
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddError makes Generate fail for the given prompt.
func (m *MockModel) AddError(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[prompt] = err
}

// SetDefault overrides the completion returned for unregistered prompts.
// Without it the mock echoes "Mock response to: <prompt>".
func (m *MockModel) SetDefault(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &response
}

// SetBatchError makes every BatchGenerate call fail as a whole.
func (m *MockModel) SetBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchErr = err
}

// SetAdapter sets the adapter reported by Info.
func (m *MockModel) SetAdapter(adapter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info.Adapter = adapter
}

// Generate implements Generator.
func (m *MockModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	return m.lookupLocked(prompt)
}

// BatchGenerate implements Generator. It counts as one batch call and one
// call per prompt.
func (m *MockModel) BatchGenerate(ctx context.Context, prompts []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([]string, len(prompts))
	for i, p := range prompts {
		m.calls = append(m.calls, p)
		text, err := m.lookupLocked(p)
		if err != nil {
			continue
		}
		out[i] = text
	}
	return out, nil
}

func (m *MockModel) lookupLocked(prompt string) (string, error) {
	if err, ok := m.errs[prompt]; ok {
		return "", err
	}
	if r, ok := m.responses[prompt]; ok {
		return r, nil
	}
	if m.fallback != nil {
		return *m.fallback, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Calls returns the prompts seen so far, in order.
func (m *MockModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// BatchCalls returns how many times BatchGenerate was invoked.
func (m *MockModel) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// Info implements Generator.
func (m *MockModel) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

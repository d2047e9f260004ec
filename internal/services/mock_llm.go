package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	GenerateFunc  func(ctx context.Context, messages []chat.ChatMessage, maxTokens int) (string, error)

	// Track calls for testing
	InitModelCalls []string
	GenerateCalls  []GenerateCall

	responses []mockResponse

	mu sync.Mutex // protects all fields above
}

type GenerateCall struct {
	Messages  []chat.ChatMessage
	MaxTokens int
}

type mockResponse struct {
	text string
	err  error
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls: make([]string, 0),
		GenerateCalls:  make([]GenerateCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Generate answers with the next queued response, then GenerateFunc, then
// an empty-tracker default.
func (m *MockLLMAPI) Generate(ctx context.Context, messages []chat.ChatMessage, maxTokens int) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	var next *mockResponse
	if len(m.responses) > 0 {
		next = &m.responses[0]
		m.responses = m.responses[1:]
	}
	fn := m.GenerateFunc
	m.mu.Unlock()

	if next != nil {
		return next.text, next.err
	}
	if fn != nil {
		return fn(ctx, messages, maxTokens)
	}
	return "<tracker>\n{}\n</tracker>", nil
}

// QueueResponse adds a response returned by a later Generate call.
func (m *MockLLMAPI) QueueResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{text: text})
}

// QueueError adds a failure returned by a later Generate call.
func (m *MockLLMAPI) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
}

// SetGenerateError sets up the mock to fail every Generate call
func (m *MockLLMAPI) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, messages []chat.ChatMessage, maxTokens int) (string, error) {
		return "", err
	}
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// Calls returns a copy of the Generate calls in a thread-safe way
func (m *MockLLMAPI) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateCall, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}

// Reset clears all call tracking and queued responses
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.GenerateCalls = make([]GenerateCall, 0)
	m.responses = nil
}

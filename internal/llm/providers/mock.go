package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// MockCall represents a recorded call to the mock provider
type MockCall struct {
	Request llm.CompletionRequest
}

// Responder computes a mock reply from the request. It lets tests answer
// concurrent pipeline stages by prompt content instead of call order.
type Responder func(req llm.CompletionRequest) (string, error)

// MockProvider implements LLMProvider for testing
type MockProvider struct {
	mu            sync.RWMutex
	responses     []string
	responseIndex int
	responder     Responder
	calls         []MockCall
}

// NewMockProvider creates a mock provider that cycles through responses
func NewMockProvider(responses []string) *MockProvider {
	return &MockProvider{
		responses: responses,
		calls:     make([]MockCall, 0),
	}
}

// NewMockProviderFunc creates a mock provider that answers with fn
func NewMockProviderFunc(fn Responder) *MockProvider {
	return &MockProvider{
		responder: fn,
		calls:     make([]MockCall, 0),
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Complete generates a completion
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.TranslateError("mock", err)
	}

	p.mu.Lock()
	p.calls = append(p.calls, MockCall{Request: req})
	responder := p.responder

	var response string
	if responder == nil {
		if len(p.responses) == 0 {
			p.mu.Unlock()
			return nil, llm.NewProviderUnavailableError("mock", fmt.Errorf("no responses configured"))
		}
		response = p.responses[p.responseIndex%len(p.responses)]
		p.responseIndex++
	}
	p.mu.Unlock()

	if responder != nil {
		var err error
		response, err = responder(req)
		if err != nil {
			return nil, err
		}
	}

	return &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: req.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: response,
		},
		FinishReason: llm.FinishReasonStop,
		Usage: llm.CompletionTokenUsage{
			PromptTokens:     10,
			CompletionTokens: len(response) / 4,
			TotalTokens:      10 + len(response)/4,
		},
	}, nil
}

// Health checks the provider health
func (p *MockProvider) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("mock provider")
}

// GetCalls returns all recorded calls (thread-safe)
func (p *MockProvider) GetCalls() []MockCall {
	p.mu.RLock()
	defer p.mu.RUnlock()

	calls := make([]MockCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// CallCount returns the number of recorded calls
func (p *MockProvider) CallCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.calls)
}

// Reset resets the mock provider state
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = make([]MockCall, 0)
	p.responseIndex = 0
}

// SetResponses replaces all responses
func (p *MockProvider) SetResponses(responses []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.responses = responses
	p.responseIndex = 0
	p.responder = nil
}

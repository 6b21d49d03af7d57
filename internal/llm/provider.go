package llm

import (
	"context"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// LLMProvider is the contract every language-model backend implements.
// Implementations must be safe for concurrent use; the pipeline issues
// generation calls from several goroutines per request.
type LLMProvider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string

	// Complete sends a completion request and returns the assistant reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) types.HealthStatus
}

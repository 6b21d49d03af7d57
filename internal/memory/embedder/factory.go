package embedder

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// EmbedderType represents available embedder implementations.
type EmbedderType string

const (
	// EmbedderTypeOllama calls a local Ollama server (nomic-embed-text by default).
	EmbedderTypeOllama EmbedderType = "ollama"

	// EmbedderTypeOpenAI uses OpenAI's embedding API (text-embedding-3-small/large).
	// Requires an API key in config or OPENAI_API_KEY.
	EmbedderTypeOpenAI EmbedderType = "openai"

	// EmbedderTypeMock produces deterministic hash-seeded vectors for tests and dry runs.
	EmbedderTypeMock EmbedderType = "mock"
)

// CreateEmbedder creates an embedder based on the provided configuration.
func CreateEmbedder(config EmbedderConfig) (Embedder, error) {
	if err := ValidateEmbedderConfig(config); err != nil {
		return nil, err
	}

	switch EmbedderType(config.Provider) {
	case EmbedderTypeOllama:
		opts := []ollama.Option{ollama.WithModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(config.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, types.WrapError(ErrCodeEmbedderUnavailable, "failed to create ollama client", err)
		}
		return NewLangchainEmbedder(client, config.Model, config.BatchSize, config.Dimensions)

	case EmbedderTypeOpenAI:
		opts := []openai.Option{
			openai.WithToken(openAIKey(config)),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, types.WrapError(ErrCodeEmbedderUnavailable, "failed to create openai client", err)
		}
		return NewLangchainEmbedder(client, config.Model, config.BatchSize, config.Dimensions)

	case EmbedderTypeMock:
		m := NewMockEmbedder()
		if config.Dimensions > 0 {
			m.SetDimensions(config.Dimensions)
		}
		return m, nil
	}

	return nil, unknownProvider(config.Provider)
}

// ValidateEmbedderConfig validates an embedder configuration.
// Returns an error if the configuration is invalid or incomplete.
func ValidateEmbedderConfig(config EmbedderConfig) error {
	if config.Provider == "" {
		return types.NewError(ErrCodeInvalidConfig, "embedder provider cannot be empty")
	}
	if config.BatchSize < 0 || config.Dimensions < 0 {
		return types.NewError(ErrCodeInvalidConfig, "batch_size and dimensions must be non-negative")
	}

	switch EmbedderType(config.Provider) {
	case EmbedderTypeMock:
		return nil

	case EmbedderTypeOllama:
		if config.Model == "" {
			return types.NewError(ErrCodeInvalidConfig,
				"ollama embedder requires model (e.g., 'nomic-embed-text')")
		}
		return nil

	case EmbedderTypeOpenAI:
		if openAIKey(config) == "" {
			return types.NewError(ErrCodeInvalidConfig,
				"OpenAI embedder requires api_key (or OPENAI_API_KEY environment variable)")
		}
		if config.Model == "" {
			return types.NewError(ErrCodeInvalidConfig,
				"OpenAI embedder requires model (e.g., 'text-embedding-3-small')")
		}
		return nil

	default:
		return unknownProvider(config.Provider)
	}
}

func openAIKey(config EmbedderConfig) string {
	if config.APIKey != "" {
		return config.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func unknownProvider(name string) error {
	return types.NewError(ErrCodeInvalidConfig,
		fmt.Sprintf("unknown embedder provider '%s' - must be 'ollama', 'openai' or 'mock'", name))
}

package embedder

import (
	"context"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Embedder generates embedding vectors from text content.
// Implementations must be thread-safe for concurrent access.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimensionality of embedding vectors.
	// Zero means the dimension is not known until the first call.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string

	// Health returns the health status of the embedder.
	Health(ctx context.Context) types.HealthStatus
}

// EmbedderConfig holds configuration for embedding providers.
type EmbedderConfig struct {
	// Provider specifies which embedder implementation to use.
	// Options: "ollama", "openai", "mock"
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider" validate:"required,oneof=ollama openai mock"`

	// Model is the specific embedding model to use, e.g. "nomic-embed-text"
	// for Ollama or "text-embedding-3-small" for OpenAI.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// APIKey is the API key for the embedding provider.
	// Can also be provided via environment variable (e.g., OPENAI_API_KEY)
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// BaseURL is the base URL for the embedding API.
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`

	// BatchSize bounds how many texts go into one backend call.
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size" validate:"gte=0"`

	// Dimensions is the expected vector size. Zero accepts whatever the model returns.
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions" validate:"gte=0"`
}

// Validate checks if the EmbedderConfig is valid.
func (c *EmbedderConfig) Validate() error {
	return ValidateEmbedderConfig(*c)
}

// DefaultEmbedderConfig returns the local Ollama configuration used for the note index.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Provider:  string(EmbedderTypeOllama),
		Model:     "nomic-embed-text",
		BaseURL:   "http://localhost:11434",
		BatchSize: 32,
	}
}

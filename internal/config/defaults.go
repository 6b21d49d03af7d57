package config

import (
	"path/filepath"

	"github.com/zero-day-ai/graphqa/internal/eval"
	"github.com/zero-day-ai/graphqa/internal/graphrag/cypher"
	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/guardrail/builtin"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
	"github.com/zero-day-ai/graphqa/internal/server"
)

// DefaultConfig returns a Config with sensible default values. Models are
// reached through OpenRouter's OpenAI-compatible API; the key is read from
// OPENROUTER_API_KEY when the file is loaded.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: filepath.Join(homeDir, "data"),
			Config:  rag.DefaultConfig(),
		},
		Logging:  observability.DefaultLoggingConfig(),
		Tracing:  observability.DefaultTracingConfig(),
		Metrics:  observability.DefaultMetricsConfig(),
		Langfuse: observability.DefaultLangfuseConfig(),
		LLM: llm.LLMConfig{
			DefaultProvider: "openrouter",
			Providers: map[string]llm.ProviderConfig{
				"openrouter": {
					Type:         llm.ProviderOpenAI,
					APIKey:       "${OPENROUTER_API_KEY}",
					BaseURL:      "https://openrouter.ai/api/v1",
					DefaultModel: "openai/gpt-4o-mini",
				},
			},
		},
		Embedder: embedder.DefaultEmbedderConfig(),
		Graph:    graph.DefaultConfig(),
		Schema:   SchemaConfig{Source: schema.SourceBuiltin},
		Retrieval: RetrievalConfig{
			IndexPath: filepath.Join(homeDir, "data", "notes.db"),
			Config:    retrieval.DefaultConfig(),
		},
		Cypher:     cypher.DefaultPolicyConfig(),
		Guardrails: builtin.DefaultGuardrailsConfig(),
		Quality:    defaultQuality(homeDir),
		Server:     server.DefaultConfig(),
		Eval:       eval.DefaultConfig(),
	}
}

func defaultQuality(homeDir string) quality.Config {
	cfg := quality.DefaultConfig()
	cfg.Dataset.Path = filepath.Join(homeDir, "data", "dataset.db")
	return cfg
}

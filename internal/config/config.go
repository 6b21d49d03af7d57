package config

import (
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

// Config is the root configuration for graphqa.
type Config struct {
	Core       CoreConfig                   `mapstructure:"core" yaml:"core"`
	Logging    observability.LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracing    observability.TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	Metrics    observability.MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Langfuse   observability.LangfuseConfig `mapstructure:"langfuse" yaml:"langfuse"`
	LLM        llm.LLMConfig                `mapstructure:"llm" yaml:"llm"`
	Embedder   embedder.EmbedderConfig      `mapstructure:"embedder" yaml:"embedder"`
	Graph      graph.GraphClientConfig      `mapstructure:"graph" yaml:"graph"`
	Schema     SchemaConfig                 `mapstructure:"schema" yaml:"schema"`
	Retrieval  RetrievalConfig              `mapstructure:"retrieval" yaml:"retrieval"`
	Cypher     cypher.PolicyConfig          `mapstructure:"cypher" yaml:"cypher"`
	Guardrails builtin.GuardrailsConfig     `mapstructure:"guardrails" yaml:"guardrails"`
	Quality    quality.Config               `mapstructure:"quality" yaml:"quality"`
	Server     server.Config                `mapstructure:"server" yaml:"server"`
	Eval       eval.Config                  `mapstructure:"eval" yaml:"eval"`
}

// CoreConfig holds the home directory and the pipeline shape.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	rag.Config `mapstructure:",squash" yaml:",inline"`
}

// SchemaConfig selects where the graph schema comes from.
type SchemaConfig struct {
	Source schema.Source `mapstructure:"source" yaml:"source" validate:"required,oneof=builtin file introspect"`

	// File is read when Source is "file".
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// RetrievalConfig adds the note index location to the retriever settings.
type RetrievalConfig struct {
	// IndexPath is the sqlite file holding notes, their FTS table and
	// embeddings.
	IndexPath string `mapstructure:"index_path" yaml:"index_path" validate:"required"`

	retrieval.Config `mapstructure:",squash" yaml:",inline"`
}

// Pipeline returns the pipeline settings, folding in the retrieval switch
// that disables the text path when no entities were extracted.
func (c *Config) Pipeline() rag.Config {
	cfg := c.Core.Config
	if c.Retrieval.SkipWithoutEntities {
		cfg.SkipTextWithoutEntities = true
	}
	return cfg
}

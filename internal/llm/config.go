package llm

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// ProviderType represents the type of LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
	ProviderMock      ProviderType = "mock"
)

// Stage names a generation step that can be routed to its own model.
type Stage string

const (
	StagePrune      Stage = "prune"
	StageExtract    Stage = "extract"
	StageCypher     Stage = "cypher"
	StageAnswer     Stage = "answer"
	StageSynthesize Stage = "synthesize"
	StageJudge      Stage = "judge"
)

// Stages lists every routable stage.
var Stages = []Stage{StagePrune, StageExtract, StageCypher, StageAnswer, StageSynthesize, StageJudge}

// LLMConfig contains the provider definitions and the per-stage routing table.
type LLMConfig struct {
	DefaultProvider string                    `mapstructure:"default_provider" yaml:"default_provider" validate:"required"`
	Providers       map[string]ProviderConfig `mapstructure:"providers" yaml:"providers" validate:"required,dive"`
	Stages          map[string]StageConfig    `mapstructure:"stages" yaml:"stages,omitempty" validate:"dive"`
}

// ProviderConfig contains configuration for a specific LLM provider.
type ProviderConfig struct {
	Type         ProviderType `mapstructure:"type" yaml:"type" validate:"required,oneof=anthropic openai google ollama mock"`
	APIKey       string       `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL      string       `mapstructure:"base_url" yaml:"base_url,omitempty"`
	DefaultModel string       `mapstructure:"default_model" yaml:"default_model"`
}

// StageConfig overrides the provider, model, or sampling settings for one stage.
// Empty fields inherit from the default provider.
type StageConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider,omitempty"`
	Model       string  `mapstructure:"model" yaml:"model,omitempty"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature,omitempty" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty" validate:"min=0"`
}

// Validate ensures the default provider and every stage route point at defined providers.
func (c *LLMConfig) Validate() error {
	if c.DefaultProvider == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.default_provider cannot be empty")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("llm.default_provider '%s' not found in providers map", c.DefaultProvider))
	}

	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !isKnownStage(name) {
			return types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("llm.stages.%s is not a known stage", name))
		}
		stage := c.Stages[name]
		if stage.Provider == "" {
			continue
		}
		if _, ok := c.Providers[stage.Provider]; !ok {
			return types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("llm.stages.%s.provider '%s' not found in providers map", name, stage.Provider))
		}
	}
	return nil
}

// Route resolves the provider name and stage settings for stage.
func (c *LLMConfig) Route(stage Stage) (string, StageConfig) {
	sc := c.Stages[string(stage)]
	provider := sc.Provider
	if provider == "" {
		provider = c.DefaultProvider
	}
	if sc.Model == "" {
		sc.Model = c.Providers[provider].DefaultModel
	}
	sc.Provider = provider
	return provider, sc
}

func isKnownStage(name string) bool {
	for _, s := range Stages {
		if string(s) == name {
			return true
		}
	}
	return false
}

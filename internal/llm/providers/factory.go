package providers

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// NewProvider creates a new LLM provider based on the configuration
func NewProvider(cfg llm.ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Type {
	case llm.ProviderAnthropic:
		return NewAnthropicProvider(cfg)

	case llm.ProviderOpenAI:
		return NewOpenAIProvider(cfg)

	case llm.ProviderGoogle:
		return NewGoogleProvider(cfg)

	case llm.ProviderOllama:
		return NewOllamaProvider(cfg)

	case llm.ProviderMock:
		return NewMockProvider([]string{"Mock response"}), nil

	default:
		return nil, llm.NewInvalidRequestError(fmt.Sprintf("unknown provider type: %s", cfg.Type))
	}
}

// NewProviderSet builds every provider named in cfg, keyed by its config name.
func NewProviderSet(cfg llm.LLMConfig) (map[string]llm.LLMProvider, error) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	set := make(map[string]llm.LLMProvider, len(names))
	for _, name := range names {
		p, err := NewProvider(cfg.Providers[name])
		if err != nil {
			return nil, types.WrapError(llm.ErrProviderInitFailed,
				fmt.Sprintf("failed to initialise provider %q", name), err)
		}
		set[name] = p
	}
	return set, nil
}

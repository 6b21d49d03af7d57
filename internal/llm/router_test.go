package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/llm/providers"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func routerConfig() llm.LLMConfig {
	return llm.LLMConfig{
		DefaultProvider: "main",
		Providers: map[string]llm.ProviderConfig{
			"main":  {Type: llm.ProviderMock, DefaultModel: "big"},
			"local": {Type: llm.ProviderMock, DefaultModel: "small"},
		},
		Stages: map[string]llm.StageConfig{
			"prune":  {Provider: "local"},
			"cypher": {Model: "coder", Temperature: 0.1, MaxTokens: 256},
		},
	}
}

func TestRouter_Complete_RoutesByStage(t *testing.T) {
	main := providers.NewMockProvider([]string{"from main"})
	local := providers.NewMockProvider([]string{"from local"})

	r, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main, "local": local})
	require.NoError(t, err)

	msgs := []llm.Message{llm.NewUserMessage("hi")}

	resp, err := r.Complete(context.Background(), llm.StagePrune, msgs)
	require.NoError(t, err)
	assert.Equal(t, "from local", resp.Content())
	assert.Equal(t, "small", local.GetCalls()[0].Request.Model)

	resp, err = r.Complete(context.Background(), llm.StageCypher, msgs, llm.WithJSONMode())
	require.NoError(t, err)
	assert.Equal(t, "from main", resp.Content())

	req := main.GetCalls()[0].Request
	assert.Equal(t, "coder", req.Model)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	assert.True(t, req.JSONMode)
}

func TestRouter_Complete_OptionsOverrideStage(t *testing.T) {
	main := providers.NewMockProvider([]string{"ok"})
	r, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main, "local": main})
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), llm.StageCypher,
		[]llm.Message{llm.NewUserMessage("q")}, llm.WithTemperature(0), llm.WithMaxTokens(32))
	require.NoError(t, err)

	req := main.GetCalls()[0].Request
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, 32, req.MaxTokens)
}

func TestRouter_Complete_InvalidRequest(t *testing.T) {
	main := providers.NewMockProvider([]string{"ok"})
	r, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main, "local": main})
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), llm.StageAnswer, nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, llm.ErrInvalidRequest))
	assert.Zero(t, main.CallCount())
}

func TestRouter_Complete_TranslatesProviderErrors(t *testing.T) {
	main := providers.NewMockProvider(nil)
	r, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main, "local": main})
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), llm.StageAnswer, []llm.Message{llm.NewUserMessage("q")})
	require.Error(t, err)
	assert.True(t, llm.IsUnavailable(err))
}

func TestNewRouter_MissingProvider(t *testing.T) {
	main := providers.NewMockProvider([]string{"ok"})
	_, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, llm.ErrProviderNotFound))
}

func TestRouter_Health(t *testing.T) {
	main := providers.NewMockProvider([]string{"ok"})
	r, err := llm.NewRouter(routerConfig(), map[string]llm.LLMProvider{"main": main, "local": main})
	require.NoError(t, err)
	assert.True(t, r.Health(context.Background()).IsHealthy())
}

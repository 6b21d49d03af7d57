package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/zero-day-ai/graphqa/internal/llm"
)

func TestToSchemaMessages(t *testing.T) {
	msgs := toSchemaMessages([]llm.Message{
		llm.NewSystemMessage("you write cypher"),
		llm.NewUserMessage("how many patients?"),
		llm.NewAssistantMessage("MATCH (p:Patient) RETURN count(p)"),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, schema.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.TextPart("how many patients?"), msgs[1].Parts[0])
}

func TestFromLangchainResponse_Usage(t *testing.T) {
	req := llm.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []llm.Message{llm.NewUserMessage("question")},
	}

	tests := []struct {
		name string
		info map[string]any
		want llm.CompletionTokenUsage
	}{
		{
			name: "openai keys",
			info: map[string]any{"PromptTokens": 12, "CompletionTokens": 3, "TotalTokens": 15},
			want: llm.CompletionTokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		},
		{
			name: "anthropic keys",
			info: map[string]any{"InputTokens": 20, "OutputTokens": 5},
			want: llm.CompletionTokenUsage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
		},
		{
			name: "float counters",
			info: map[string]any{"prompt_tokens": float64(7), "completion_tokens": float64(2)},
			want: llm.CompletionTokenUsage{PromptTokens: 7, CompletionTokens: 2, TotalTokens: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := fromLangchainResponse(&llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "42", GenerationInfo: tt.info}},
			}, req)
			assert.Equal(t, "42", resp.Content())
			assert.Equal(t, tt.want, resp.Usage)
		})
	}
}

func TestFromLangchainResponse_EstimatesMissingUsage(t *testing.T) {
	req := llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("how many patients live in Ohio?")}}
	resp := fromLangchainResponse(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "There are 3 patients.", StopReason: "length"}},
	}, req)

	assert.True(t, resp.Usage.Estimated)
	assert.Positive(t, resp.Usage.PromptTokens)
	assert.Equal(t, llm.FinishReasonLength, resp.FinishReason)
}

func TestBuildCallOptions(t *testing.T) {
	opts := buildCallOptions(llm.CompletionRequest{
		Model:       "m",
		Temperature: 0.2,
		MaxTokens:   64,
		JSONMode:    true,
	})

	var applied llms.CallOptions
	for _, opt := range opts {
		opt(&applied)
	}
	assert.Equal(t, "m", applied.Model)
	assert.Equal(t, 0.2, applied.Temperature)
	assert.Equal(t, 64, applied.MaxTokens)
	assert.True(t, applied.JSONMode)
}

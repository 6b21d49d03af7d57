package providers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// toSchemaMessages converts graphqa messages to langchaingo MessageContent
func toSchemaMessages(messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		role := schema.ChatMessageTypeHuman
		switch msg.Role {
		case llm.RoleSystem:
			role = schema.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = schema.ChatMessageTypeAI
		}

		result = append(result, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	return result
}

// fromLangchainResponse converts a langchaingo response to a graphqa response.
// Token usage is read from the first choice's generation info; backends that
// leave it empty get an estimate.
func fromLangchainResponse(resp *llms.ContentResponse, req llm.CompletionRequest) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        req.Model,
		Message:      llm.Message{Role: llm.RoleAssistant},
		FinishReason: llm.FinishReasonStop,
	}

	if resp != nil && len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Message.Content = choice.Content

		switch choice.StopReason {
		case "length", "max_tokens":
			out.FinishReason = llm.FinishReasonLength
		case "content_filter":
			out.FinishReason = llm.FinishReasonContentFilter
		}

		out.Usage = usageFromGenerationInfo(choice.GenerationInfo)
	}

	if out.Usage.IsZero() {
		out.Usage = llm.EstimateUsage(req, out)
	}

	return out
}

// usageFromGenerationInfo reads the token counters that the langchaingo
// backends report under differing keys.
func usageFromGenerationInfo(info map[string]any) llm.CompletionTokenUsage {
	var usage llm.CompletionTokenUsage
	if info == nil {
		return usage
	}

	usage.PromptTokens = firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens")
	usage.CompletionTokens = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens")
	usage.TotalTokens = firstInt(info, "TotalTokens", "total_tokens")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

// buildCallOptions converts a graphqa request to langchaingo call options
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0, 6)

	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}

	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	if req.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(req.TopP))
	}

	if len(req.StopSequences) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(req.StopSequences))
	}

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	if req.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	return callOpts
}

// generate runs one completion through a langchaingo model.
func generate(ctx context.Context, provider string, model llms.Model, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}

	resp, err := model.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(provider, err)
	}

	return fromLangchainResponse(resp, req), nil
}

// pingModel sends a one-token completion to check the backend answers.
func pingModel(ctx context.Context, p llm.LLMProvider, model string) types.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.Complete(ctx, llm.CompletionRequest{
		Model:     model,
		Messages:  []llm.Message{llm.NewUserMessage("ping")},
		MaxTokens: 1,
	})
	if err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy(p.Name() + " reachable")
}

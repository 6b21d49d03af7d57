package observability

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/llm"
	"go.opentelemetry.io/otel/attribute"
)

// GenAI attribute keys following OpenTelemetry GenAI semantic conventions
// https://opentelemetry.io/docs/specs/semconv/gen-ai/
const (
	GenAISystem               = "gen_ai.system"
	GenAIOperationName        = "gen_ai.operation.name"
	GenAIRequestModel         = "gen_ai.request.model"
	GenAIRequestTemperature   = "gen_ai.request.temperature"
	GenAIRequestMaxTokens     = "gen_ai.request.max_tokens"
	GenAIResponseModel        = "gen_ai.response.model"
	GenAIResponseFinishReason = "gen_ai.response.finish_reasons"
	GenAIUsageInputTokens     = "gen_ai.usage.input_tokens"
	GenAIUsageOutputTokens    = "gen_ai.usage.output_tokens"

	// GenAIPrompt and GenAICompletion hold full texts. They are only
	// recorded when prompt capture is enabled.
	GenAIPrompt     = "gen_ai.prompt"
	GenAICompletion = "gen_ai.completion"

	// AttrStage names the pipeline stage that issued the call.
	AttrStage = "graphqa.llm.stage"
)

// SpanGenAIChat is the span name of a generation call.
const SpanGenAIChat = "gen_ai.chat"

// RequestAttributes returns the attributes describing a routed request.
func RequestAttributes(stage llm.Stage, provider string, sc llm.StageConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GenAIOperationName, "chat"),
		attribute.String(AttrStage, string(stage)),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(GenAISystem, provider))
	}
	if sc.Model != "" {
		attrs = append(attrs, attribute.String(GenAIRequestModel, sc.Model))
	}
	if sc.Temperature > 0 {
		attrs = append(attrs, attribute.Float64(GenAIRequestTemperature, sc.Temperature))
	}
	if sc.MaxTokens > 0 {
		attrs = append(attrs, attribute.Int(GenAIRequestMaxTokens, sc.MaxTokens))
	}
	return attrs
}

// ResponseAttributes creates OpenTelemetry attributes from an LLM completion
// response, without its content.
func ResponseAttributes(resp *llm.CompletionResponse) []attribute.KeyValue {
	if resp == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(GenAIResponseModel, resp.Model),
		attribute.StringSlice(GenAIResponseFinishReason, []string{string(resp.FinishReason)}),
		attribute.Int(GenAIUsageInputTokens, resp.Usage.PromptTokens),
		attribute.Int(GenAIUsageOutputTokens, resp.Usage.CompletionTokens),
		attribute.Bool("gen_ai.usage.estimated", resp.Usage.Estimated),
	}
}

// PromptAttribute renders messages as one "[role] content" block per line.
func PromptAttribute(messages []llm.Message) attribute.KeyValue {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s", msg.Role, msg.Content)
	}
	return attribute.String(GenAIPrompt, b.String())
}

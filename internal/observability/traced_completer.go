package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// stageResolver is implemented by llm.Router. When the wrapped completer
// resolves stages, spans carry the provider and configured model.
type stageResolver interface {
	Resolve(stage llm.Stage) (llm.LLMProvider, llm.StageConfig, error)
}

// TracedCompleterOption configures a TracedCompleter.
type TracedCompleterOption func(*TracedCompleter)

// WithCompleterTracer sets the tracer used for generation spans.
func WithCompleterTracer(tracer trace.Tracer) TracedCompleterOption {
	return func(c *TracedCompleter) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithCompleterMetrics sets the metrics recorder.
func WithCompleterMetrics(m *Metrics) TracedCompleterOption {
	return func(c *TracedCompleter) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCompleterLogger sets the logger.
func WithCompleterLogger(logger *slog.Logger) TracedCompleterOption {
	return func(c *TracedCompleter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPromptCapture records prompts and completions on spans. Only enable it
// where spans may hold patient data.
func WithPromptCapture(capture bool) TracedCompleterOption {
	return func(c *TracedCompleter) {
		c.capturePrompt = capture
	}
}

// TracedCompleter wraps an llm.Completer with a client span per call,
// gen_ai.* attributes, and completion metrics.
type TracedCompleter struct {
	inner         llm.Completer
	tracer        trace.Tracer
	metrics       *Metrics
	logger        *slog.Logger
	capturePrompt bool
}

var _ llm.Completer = (*TracedCompleter)(nil)

// NewTracedCompleter wraps inner.
func NewTracedCompleter(inner llm.Completer, opts ...TracedCompleterOption) *TracedCompleter {
	c := &TracedCompleter{
		inner:   inner,
		tracer:  noop.NewTracerProvider().Tracer(InstrumentationName),
		metrics: NoopMetrics(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements llm.Completer.
func (c *TracedCompleter) Complete(ctx context.Context, stage llm.Stage, messages []llm.Message, opts ...llm.CompletionOption) (*llm.CompletionResponse, error) {
	var provider string
	var sc llm.StageConfig
	if r, ok := c.inner.(stageResolver); ok {
		if p, cfg, err := r.Resolve(stage); err == nil {
			provider, sc = p.Name(), cfg
		}
	}

	ctx, span := c.tracer.Start(ctx, SpanGenAIChat+" "+string(stage),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(RequestAttributes(stage, provider, sc)...),
	)
	defer span.End()

	if c.capturePrompt {
		span.SetAttributes(PromptAttribute(messages))
	}

	start := time.Now()
	resp, err := c.inner.Complete(ctx, stage, messages, opts...)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := types.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("error.type", string(code)))
		}
		c.metrics.RecordCompletion(ctx, string(stage), sc.Model, "error", 0, 0, elapsed)
		c.logger.WarnContext(ctx, "generation call failed",
			"stage", stage,
			"error", err,
			"duration", elapsed,
		)
		return nil, err
	}

	span.SetAttributes(ResponseAttributes(resp)...)
	if c.capturePrompt {
		span.SetAttributes(attribute.String(GenAICompletion, resp.Content()))
	}
	c.metrics.RecordCompletion(ctx, string(stage), resp.Model, "success",
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, elapsed)
	c.logger.DebugContext(ctx, "generation call succeeded",
		"stage", stage,
		"model", resp.Model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration", elapsed,
	)

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

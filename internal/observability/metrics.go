package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zero-day-ai/graphqa/internal/types"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metric names.
const (
	MetricRequests          = "graphqa.requests"
	MetricRequestDuration   = "graphqa.request.duration"
	MetricStageDuration     = "graphqa.stage.duration"
	MetricLLMCompletions    = "graphqa.llm.completions"
	MetricLLMTokensInput    = "graphqa.llm.tokens.input"
	MetricLLMTokensOutput   = "graphqa.llm.tokens.output"
	MetricLLMLatency        = "graphqa.llm.latency"
	MetricDegraded          = "graphqa.degraded"
	MetricGuardrailTriggers = "graphqa.guardrail.triggers"
	MetricQualityScore      = "graphqa.quality.score"
	MetricFeedback          = "graphqa.feedback"
)

// Metrics holds the instruments recorded by the pipeline and server. The zero
// value is not usable; use NewMetrics or NoopMetrics.
type Metrics struct {
	requests          metric.Int64Counter
	requestDuration   metric.Float64Histogram
	stageDuration     metric.Float64Histogram
	completions       metric.Int64Counter
	tokensIn          metric.Int64Counter
	tokensOut         metric.Int64Counter
	llmLatency        metric.Float64Histogram
	degraded          metric.Int64Counter
	guardrailTriggers metric.Int64Counter
	qualityScore      metric.Float64Histogram
	feedback          metric.Int64Counter
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requests, MetricRequests, "Questions handled, by outcome"},
		{&m.completions, MetricLLMCompletions, "Generation calls, by stage and status"},
		{&m.tokensIn, MetricLLMTokensInput, "Prompt tokens, by stage"},
		{&m.tokensOut, MetricLLMTokensOutput, "Completion tokens, by stage"},
		{&m.degraded, MetricDegraded, "Degraded branches, by component and reason"},
		{&m.guardrailTriggers, MetricGuardrailTriggers, "Triggered guardrails, by phase and action"},
		{&m.feedback, MetricFeedback, "User feedback, by value"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, types.WrapError(ErrMetricsRegistration, "failed to create "+c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
		unit string
	}{
		{&m.requestDuration, MetricRequestDuration, "End-to-end question latency", "ms"},
		{&m.stageDuration, MetricStageDuration, "Pipeline stage latency, by stage", "ms"},
		{&m.llmLatency, MetricLLMLatency, "Generation call latency, by stage", "ms"},
		{&m.qualityScore, MetricQualityScore, "Quality metric values, by metric", "1"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit(h.unit)); err != nil {
			return nil, types.WrapError(ErrMetricsRegistration, "failed to create "+h.name, err)
		}
	}

	return m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// RecordRequest records one handled question.
func (m *Metrics) RecordRequest(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, ms(d), attrs)
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.stageDuration.Record(ctx, ms(d), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCompletion records one generation call.
func (m *Metrics) RecordCompletion(ctx context.Context, stage, model, status string, inputTokens, outputTokens int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.completions.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, ms(d), attrs)
	if inputTokens > 0 {
		m.tokensIn.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.tokensOut.Add(ctx, int64(outputTokens), attrs)
	}
}

// RecordDegraded records a branch that fell back to an insufficient answer.
func (m *Metrics) RecordDegraded(ctx context.Context, component, reason string) {
	m.degraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("reason", reason),
	))
}

// RecordGuardrail records a triggered guardrail.
func (m *Metrics) RecordGuardrail(ctx context.Context, phase, action string) {
	m.guardrailTriggers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("action", action),
	))
}

// RecordQualityScore records one scorer output.
func (m *Metrics) RecordQualityScore(ctx context.Context, name string, value float64) {
	m.qualityScore.Record(ctx, value, metric.WithAttributes(attribute.String("metric", name)))
}

// RecordFeedback records one user feedback value.
func (m *Metrics) RecordFeedback(ctx context.Context, positive bool) {
	value := "negative"
	if positive {
		value = "positive"
	}
	m.feedback.Add(ctx, 1, metric.WithAttributes(attribute.String("value", value)))
}

// MetricsProvider owns the OTel meter provider and the Prometheus registry
// it exports into.
type MetricsProvider struct {
	provider metric.MeterProvider
	sdk      *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// InitMetrics builds a meter provider backed by a private Prometheus registry
// that also carries Go runtime and process collectors. When metrics are
// disabled the provider is a no-op and Handler returns 404.
func InitMetrics(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{provider: noop.NewMeterProvider()}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(ErrInvalidConfig, "invalid metrics configuration", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, types.WrapError(ErrMetricsRegistration, "failed to create prometheus exporter", err)
	}

	sdk := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &MetricsProvider{provider: sdk, sdk: sdk, registry: registry}, nil
}

// Meter returns the graphqa meter.
func (p *MetricsProvider) Meter() metric.Meter {
	return p.provider.Meter(InstrumentationName)
}

// Handler serves the registry in the Prometheus text format.
func (p *MetricsProvider) Handler() http.Handler {
	if p.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

package quality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/graphqa/internal/observability"
)

// Span and attribute names for scoring.
const (
	SpanBattery = "graphqa.quality.battery"
	SpanScorer  = "graphqa.quality.score"

	AttrMetric = "graphqa.quality.metric"
	AttrValue  = "graphqa.quality.value"
)

// SourceEval marks scores produced by the automatic battery.
const SourceEval = "EVAL"

// TraceRef identifies the request a score belongs to.
type TraceRef struct {
	TraceID string
	SpanID  string
}

// TraceRefFromContext reads the active span of ctx.
func TraceRefFromContext(ctx context.Context) TraceRef {
	return TraceRef{
		TraceID: observability.TraceIDFromContext(ctx),
		SpanID:  observability.SpanIDFromContext(ctx),
	}
}

// BatteryOption configures a Battery.
type BatteryOption func(*Battery)

// WithSink sets where scores are sent.
func WithSink(sink ScoreSink) BatteryOption {
	return func(b *Battery) {
		b.sink = sink
	}
}

// WithCollector sets a collector that receives every scored answer.
func WithCollector(c Collector) BatteryOption {
	return func(b *Battery) {
		b.collector = c
	}
}

// WithMetrics sets the metrics scores are recorded into.
func WithMetrics(m *observability.Metrics) BatteryOption {
	return func(b *Battery) {
		b.metrics = m
	}
}

// WithTracer sets the tracer for scorer spans.
func WithTracer(tracer trace.Tracer) BatteryOption {
	return func(b *Battery) {
		b.tracer = tracer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BatteryOption {
	return func(b *Battery) {
		b.logger = logger
	}
}

// Battery runs a fixed list of scorers against one answer. A failing scorer
// is logged and skipped; it never affects the other scorers or the caller.
type Battery struct {
	scorers   []Scorer
	sink      ScoreSink
	collector Collector
	metrics   *observability.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewBattery creates a battery over scorers, run in the given order.
func NewBattery(scorers []Scorer, opts ...BatteryOption) *Battery {
	b := &Battery{
		scorers: scorers,
		metrics: observability.NoopMetrics(),
		tracer:  noop.NewTracerProvider().Tracer(observability.InstrumentationName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Scorers returns the names of the configured scorers.
func (b *Battery) Scorers() []string {
	names := make([]string, len(b.scorers))
	for i, s := range b.scorers {
		names[i] = s.Name()
	}
	return names
}

// Run scores in and delivers the results to the sink. It returns the scores
// that were produced; errors are only logged.
func (b *Battery) Run(ctx context.Context, ref TraceRef, in Input) []Score {
	ctx, span := b.tracer.Start(ctx, SpanBattery)
	defer span.End()

	var (
		scores []Score
		errs   *multierror.Error
	)
	for _, scorer := range b.scorers {
		if !scorer.Applies(in) {
			continue
		}
		score, err := b.runOne(ctx, scorer, in)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		scores = append(scores, score)
		b.metrics.RecordQualityScore(ctx, score.Name, score.Value)
	}

	span.SetAttributes(attribute.Int("graphqa.quality.scores", len(scores)))
	if err := errs.ErrorOrNil(); err != nil {
		span.SetStatus(codes.Error, "some scorers failed")
		b.logger.WarnContext(ctx, "quality scoring incomplete",
			"trace_id", ref.TraceID,
			"failed", errs.Len(),
			"error", err,
		)
	}

	if b.sink != nil && len(scores) > 0 {
		if err := b.sink.Scores(ctx, toObservability(ref, scores)); err != nil {
			b.logger.WarnContext(ctx, "failed to deliver quality scores",
				"trace_id", ref.TraceID,
				"error", err,
			)
		}
	}
	if b.collector != nil && len(scores) > 0 {
		if err := b.collector.Collect(ctx, ref, in, scores); err != nil {
			b.logger.WarnContext(ctx, "failed to collect scored answer",
				"trace_id", ref.TraceID,
				"error", err,
			)
		}
	}
	return scores
}

func (b *Battery) runOne(ctx context.Context, scorer Scorer, in Input) (score Score, err error) {
	ctx, span := b.tracer.Start(ctx, SpanScorer, trace.WithAttributes(
		attribute.String(AttrMetric, scorer.Name()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = NewScoringError(scorer.Name(), fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	start := time.Now()
	score, err = scorer.Score(ctx, in)
	if err != nil {
		return Score{}, err
	}
	if score.Name == "" {
		score.Name = scorer.Name()
	}

	value, ok := Clamp(score.Value)
	if !ok {
		b.logger.WarnContext(ctx, "dropping non-finite quality score",
			"metric", score.Name,
			"value", fmt.Sprint(score.Value),
		)
		return Score{}, NewScoringError(score.Name, fmt.Errorf("non-finite value %v", score.Value))
	}
	score.Value = value

	span.SetAttributes(
		attribute.Float64(AttrValue, score.Value),
		attribute.Int64("graphqa.quality.duration_ms", time.Since(start).Milliseconds()),
	)
	return score, nil
}

func toObservability(ref TraceRef, scores []Score) []observability.Score {
	out := make([]observability.Score, len(scores))
	for i, s := range scores {
		out[i] = observability.Score{
			TraceID:       ref.TraceID,
			ObservationID: ref.SpanID,
			Name:          s.Name,
			Value:         s.Value,
			Comment:       s.Reason,
			Source:        SourceEval,
		}
	}
	return out
}

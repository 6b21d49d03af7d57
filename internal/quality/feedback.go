package quality

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// SourceFeedback marks scores given by users.
const SourceFeedback = "ANNOTATION"

// Feedback is a user's binary judgment of one answer.
type Feedback struct {
	TraceID string  `json:"trace_id"`
	SpanID  string  `json:"span_id,omitempty"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

// Validate checks that f names a trace and carries 0 or 1.
func (f Feedback) Validate() error {
	if strings.TrimSpace(f.TraceID) == "" {
		return types.NewError(ErrInvalidFeedback, "feedback requires a trace id")
	}
	if f.Score != 0 && f.Score != 1 {
		return types.NewError(ErrInvalidFeedback, "feedback score must be 0 or 1")
	}
	return nil
}

// FeedbackRecorder attaches user feedback to the trace of the answer it
// judges.
type FeedbackRecorder struct {
	sink    ScoreSink
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFeedbackRecorder creates a recorder. A nil metrics records nothing.
func NewFeedbackRecorder(sink ScoreSink, metrics *observability.Metrics, logger *slog.Logger) *FeedbackRecorder {
	if metrics == nil {
		metrics = observability.NoopMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackRecorder{sink: sink, metrics: metrics, logger: logger}
}

// Record validates f and sends it to the sink. Only invalid feedback is an
// error; a failing sink is logged, like scores from the battery.
func (r *FeedbackRecorder) Record(ctx context.Context, f Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	r.metrics.RecordFeedback(ctx, f.Score == 1)

	if r.sink == nil {
		return nil
	}
	err := r.sink.Scores(ctx, []observability.Score{{
		TraceID:       f.TraceID,
		ObservationID: f.SpanID,
		Name:          MetricUserFeedback,
		Value:         f.Score,
		Comment:       f.Comment,
		Source:        SourceFeedback,
	}})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to deliver feedback",
			"trace_id", f.TraceID,
			"error", types.WrapError(ErrSinkUnavailable, "failed to record feedback", err),
		)
	}
	return nil
}

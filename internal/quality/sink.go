package quality

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/zero-day-ai/graphqa/internal/observability"
)

// ScoreSink receives scores attached to a trace. *observability.LangfuseClient
// satisfies it.
type ScoreSink interface {
	Scores(ctx context.Context, scores []observability.Score) error
}

// Collector receives a scored answer together with its input. Unlike a
// ScoreSink it sees the question and answer text.
type Collector interface {
	Collect(ctx context.Context, ref TraceRef, in Input, scores []Score) error
}

// LogSink writes scores to a logger. It is the sink used when no trace
// backend is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Scores logs each score.
func (s *LogSink) Scores(ctx context.Context, scores []observability.Score) error {
	for _, sc := range scores {
		s.logger.InfoContext(ctx, "quality score",
			"trace_id", sc.TraceID,
			"metric", sc.Name,
			"value", sc.Value,
			"reason", sc.Comment,
			"source", sc.Source,
		)
	}
	return nil
}

// MultiSink fans scores out to several sinks. Every sink is tried; failures
// are combined.
type MultiSink []ScoreSink

// Scores sends scores to every sink.
func (m MultiSink) Scores(ctx context.Context, scores []observability.Score) error {
	var result *multierror.Error
	for _, sink := range m {
		if err := sink.Scores(ctx, scores); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

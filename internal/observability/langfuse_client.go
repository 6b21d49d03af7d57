package observability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Score is a numeric evaluation attached to a trace, and optionally to one
// observation inside it.
type Score struct {
	TraceID       string
	ObservationID string
	Name          string
	Value         float64
	Comment       string
	Source        string
}

// Validate checks that the score can be ingested.
func (s Score) Validate() error {
	if s.TraceID == "" {
		return types.NewError(ErrInvalidScore, "score requires a trace id")
	}
	if s.Name == "" {
		return types.NewError(ErrInvalidScore, "score requires a name")
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return types.NewError(ErrInvalidScore, fmt.Sprintf("score %q is not finite", s.Name))
	}
	return nil
}

// LangfuseClient posts scores to the Langfuse ingestion API. Each call is one
// request; scores are few per question and are sent from background work.
type LangfuseClient struct {
	ingestion *ingestion
	now       func() time.Time
}

// NewLangfuseClient creates a client for cfg.
func NewLangfuseClient(cfg LangfuseConfig, opts ...LangfuseOption) (*LangfuseClient, error) {
	if err := validateLangfuseCredentials(cfg); err != nil {
		return nil, err
	}
	return &LangfuseClient{
		ingestion: newIngestion(cfg, newLangfuseOptions(opts)),
		now:       time.Now,
	}, nil
}

// Score records one score.
func (c *LangfuseClient) Score(ctx context.Context, s Score) error {
	return c.Scores(ctx, []Score{s})
}

// Scores records several scores in one batch. Nothing is sent if any score
// is invalid.
func (c *LangfuseClient) Scores(ctx context.Context, scores []Score) error {
	events := make([]ingestionEvent, 0, len(scores))
	now := c.now()
	for _, s := range scores {
		if err := s.Validate(); err != nil {
			return err
		}
		body := map[string]any{
			"traceId":  s.TraceID,
			"name":     s.Name,
			"value":    s.Value,
			"dataType": "NUMERIC",
		}
		if s.ObservationID != "" {
			body["observationId"] = s.ObservationID
		}
		if s.Comment != "" {
			body["comment"] = s.Comment
		}
		if s.Source != "" {
			body["source"] = s.Source
		}
		events = append(events, newEvent("score-create", now, body))
	}
	return c.ingestion.send(ctx, events)
}

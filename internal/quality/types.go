package quality

import (
	"context"
	"math"
)

// Metric names.
const (
	MetricHallucination   = "hallucination"
	MetricAnswerRelevance = "answer_relevance"
	MetricModeration      = "moderation"
	MetricUsefulness      = "usefulness"
	MetricCoverage        = "entity_coverage"
	MetricUserFeedback    = "user_feedback"
)

// Input is what a scorer sees of one answered question.
type Input struct {
	Question string
	Answer   string

	// Context holds the retrieval contexts the answer was built from.
	Context []string

	// EntityValues are the values of the entities extracted from the question.
	EntityValues []string

	// Prompt and Model identify the generation that produced Answer. Both
	// are empty when no model call produced it.
	Prompt string
	Model  string

	// Metadata is passed through to collectors unchanged.
	Metadata map[string]string
}

// Score is one metric value in [0,1] with the scorer's rationale.
type Score struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason,omitempty"`
}

// Scorer computes one metric.
type Scorer interface {
	Name() string

	// Applies reports whether the scorer has what it needs for in. The
	// battery skips scorers that do not apply.
	Applies(in Input) bool

	Score(ctx context.Context, in Input) (Score, error)
}

// Clamp bounds v to [0,1]. ok is false for NaN and infinities, which
// cannot be clamped meaningfully.
func Clamp(v float64) (clamped float64, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v)), true
}

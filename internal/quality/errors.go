package quality

import "github.com/zero-day-ai/graphqa/internal/types"

// Quality error codes
const (
	ErrScoringFailed   types.ErrorCode = "QUALITY_SCORING_FAILED"
	ErrInvalidFeedback types.ErrorCode = "QUALITY_INVALID_FEEDBACK"
	ErrSinkUnavailable types.ErrorCode = "QUALITY_SINK_UNAVAILABLE"
	ErrUnknownMetric   types.ErrorCode = "QUALITY_UNKNOWN_METRIC"
	ErrInvalidConfig   types.ErrorCode = "QUALITY_INVALID_CONFIG"
	ErrDatasetFailed   types.ErrorCode = "QUALITY_DATASET_FAILED"
)

// NewScoringError wraps a scorer failure.
func NewScoringError(metric string, cause error) *types.Error {
	return types.WrapError(ErrScoringFailed, "scorer "+metric+" failed", cause)
}

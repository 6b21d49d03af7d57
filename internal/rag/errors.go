package rag

import (
	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Pipeline error codes
const (
	ErrCodeDegradedGeneration  types.ErrorCode = "PIPELINE_DEGRADED_GENERATION"
	ErrCodeUpstreamUnavailable types.ErrorCode = "PIPELINE_UPSTREAM_UNAVAILABLE"
	ErrCodeInvalidQuestion     types.ErrorCode = "PIPELINE_INVALID_QUESTION"
	ErrCodeAnswerFailed        types.ErrorCode = "PIPELINE_ANSWER_FAILED"
	ErrCodeInvalidConfig       types.ErrorCode = "PIPELINE_INVALID_CONFIG"
)

// NewDegradedError records a generation failure that the pipeline absorbed.
func NewDegradedError(stage string, cause error) *types.Error {
	return types.WrapError(ErrCodeDegradedGeneration, stage+" degraded to its default", cause)
}

// NewUpstreamError wraps an unreachable store or model backend.
func NewUpstreamError(component string, cause error) *types.Error {
	return &types.Error{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   component + " is unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// IsUpstreamUnavailable reports whether err means a store or model backend
// could not be reached.
func IsUpstreamUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return types.HasCode(err, ErrCodeUpstreamUnavailable) ||
		llm.IsUnavailable(err) ||
		graph.IsUnavailable(err) ||
		retrieval.IsUnavailable(err)
}

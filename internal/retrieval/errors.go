package retrieval

import (
	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Retrieval error codes
const (
	ErrCodeStoreUnavailable  types.ErrorCode = "RETRIEVAL_STORE_UNAVAILABLE"
	ErrCodeSearchFailed      types.ErrorCode = "RETRIEVAL_SEARCH_FAILED"
	ErrCodeIndexFailed       types.ErrorCode = "RETRIEVAL_INDEX_FAILED"
	ErrCodeInvalidNote       types.ErrorCode = "RETRIEVAL_INVALID_NOTE"
	ErrCodeInvalidConfig     types.ErrorCode = "RETRIEVAL_INVALID_CONFIG"
	ErrCodeDimensionMismatch types.ErrorCode = "RETRIEVAL_DIMENSION_MISMATCH"
)

// IsUnavailable reports whether err means the note index or the embedding
// backend could not serve the request.
func IsUnavailable(err error) bool {
	switch types.CodeOf(err) {
	case ErrCodeStoreUnavailable, ErrCodeSearchFailed, embedder.ErrCodeEmbedderUnavailable, embedder.ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}

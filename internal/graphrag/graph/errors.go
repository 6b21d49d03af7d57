package graph

import "github.com/zero-day-ai/graphqa/internal/types"

// Graph database error codes
const (
	// Connection errors
	ErrCodeGraphConnectionFailed types.ErrorCode = "GRAPH_CONNECTION_FAILED"
	ErrCodeGraphConnectionLost   types.ErrorCode = "GRAPH_CONNECTION_LOST"
	ErrCodeGraphConnectionClosed types.ErrorCode = "GRAPH_CONNECTION_CLOSED"

	// Configuration errors
	ErrCodeGraphInvalidConfig types.ErrorCode = "GRAPH_INVALID_CONFIG"

	// Query errors
	ErrCodeGraphQueryFailed   types.ErrorCode = "GRAPH_QUERY_FAILED"
	ErrCodeGraphQueryTimeout  types.ErrorCode = "GRAPH_QUERY_TIMEOUT"
	ErrCodeGraphInvalidQuery  types.ErrorCode = "GRAPH_INVALID_QUERY"
	ErrCodeGraphResultParsing types.ErrorCode = "GRAPH_RESULT_PARSING"

	// Schema introspection errors
	ErrCodeGraphIntrospectionFailed types.ErrorCode = "GRAPH_INTROSPECTION_FAILED"
)

// IsUnavailable reports whether err means the graph store itself could not
// be reached, as opposed to the query being rejected.
func IsUnavailable(err error) bool {
	switch types.CodeOf(err) {
	case ErrCodeGraphConnectionFailed, ErrCodeGraphConnectionLost, ErrCodeGraphConnectionClosed:
		return true
	default:
		return false
	}
}

package observability

import (
	"fmt"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Observability error codes.
const (
	ErrExporterConnection   types.ErrorCode = "OBSERVABILITY_EXPORTER_CONNECTION"
	ErrAuthenticationFailed types.ErrorCode = "OBSERVABILITY_AUTHENTICATION_FAILED"
	ErrMetricsRegistration  types.ErrorCode = "OBSERVABILITY_METRICS_REGISTRATION"
	ErrShutdownTimeout      types.ErrorCode = "OBSERVABILITY_SHUTDOWN_TIMEOUT"
	ErrInvalidConfig        types.ErrorCode = "OBSERVABILITY_INVALID_CONFIG"
	ErrInvalidScore         types.ErrorCode = "OBSERVABILITY_INVALID_SCORE"
)

// NewExporterConnectionError creates an error for exporter connection failures.
// This error is retryable as network issues are often transient.
func NewExporterConnectionError(endpoint string, cause error) *types.Error {
	err := types.WrapError(ErrExporterConnection, fmt.Sprintf("failed to connect to exporter at %s", endpoint), cause)
	err.Retryable = true
	return err
}

// NewAuthenticationError creates an error for authentication failures.
func NewAuthenticationError(service string, cause error) *types.Error {
	return types.WrapError(ErrAuthenticationFailed, fmt.Sprintf("authentication failed for %s", service), cause)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// LLM error codes
const (
	ErrProviderNotFound     types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	ErrProviderInitFailed   types.ErrorCode = "LLM_PROVIDER_INIT_FAILED"
	ErrProviderUnavailable  types.ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized types.ErrorCode = "LLM_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited  types.ErrorCode = "LLM_PROVIDER_RATE_LIMITED"

	ErrInvalidRequest      types.ErrorCode = "LLM_INVALID_REQUEST"
	ErrResponseParseFailed types.ErrorCode = "LLM_RESPONSE_PARSE_FAILED"
	ErrTimeoutExceeded     types.ErrorCode = "LLM_TIMEOUT_EXCEEDED"
	ErrContextCanceled     types.ErrorCode = "LLM_CONTEXT_CANCELED"
	ErrNetworkFailed       types.ErrorCode = "LLM_NETWORK_FAILED"
)

// IsUnavailable reports whether err means the backend could not be reached or
// refused to serve the request. These are the failures the pipeline surfaces
// as a request-level error instead of degrading.
func IsUnavailable(err error) bool {
	switch types.CodeOf(err) {
	case ErrProviderUnavailable, ErrProviderUnauthorized, ErrProviderRateLimited,
		ErrNetworkFailed, ErrTimeoutExceeded, ErrProviderNotFound:
		return true
	default:
		return false
	}
}

// NewProviderUnavailableError creates a retryable error for when a provider is temporarily unavailable
func NewProviderUnavailableError(providerName string, cause error) *types.Error {
	return &types.Error{
		Code:      ErrProviderUnavailable,
		Message:   "provider temporarily unavailable: " + providerName,
		Retryable: true,
		Cause:     cause,
	}
}

// NewProviderNotFoundError creates an error for when a provider is not configured
func NewProviderNotFoundError(providerName string) *types.Error {
	return types.NewError(ErrProviderNotFound, "provider not found: "+providerName)
}

// NewRateLimitError creates a retryable error for rate limiting
func NewRateLimitError(providerName string, cause error) *types.Error {
	return &types.Error{
		Code:      ErrProviderRateLimited,
		Message:   "rate limit exceeded for provider: " + providerName,
		Retryable: true,
		Cause:     cause,
	}
}

// NewProviderUnauthorizedError creates an unauthorized provider error
func NewProviderUnauthorizedError(providerName string, cause error) *types.Error {
	return &types.Error{
		Code:    ErrProviderUnauthorized,
		Message: fmt.Sprintf("provider '%s' authentication failed", providerName),
		Cause:   cause,
	}
}

// NewInvalidRequestError creates an error for invalid requests
func NewInvalidRequestError(message string) *types.Error {
	return types.NewError(ErrInvalidRequest, message)
}

// NewParseError creates an error for responses that could not be decoded
func NewParseError(message string, cause error) *types.Error {
	return types.WrapError(ErrResponseParseFailed, message, cause)
}

// TranslateError maps a backend error onto an LLM error code based on its message.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return types.WrapError(ErrContextCanceled, "request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.Error{Code: ErrTimeoutExceeded, Message: "request deadline exceeded", Retryable: true, Cause: err}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication") || strings.Contains(lower, "api key"):
		return NewProviderUnauthorizedError(provider, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return NewRateLimitError(provider, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return &types.Error{Code: ErrTimeoutExceeded, Message: err.Error(), Retryable: true, Cause: err}
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return &types.Error{Code: ErrNetworkFailed, Message: err.Error(), Retryable: true, Cause: err}
	default:
		return NewProviderUnavailableError(provider, err)
	}
}

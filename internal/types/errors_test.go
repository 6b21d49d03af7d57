package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "simple error without cause",
			err:      NewError(CONFIG_LOAD_FAILED, "failed to load configuration"),
			expected: "[CONFIG_LOAD_FAILED] failed to load configuration",
		},
		{
			name:     "error with cause",
			err:      WrapError(DB_QUERY_FAILED, "query execution failed", errors.New("connection timeout")),
			expected: "[DB_QUERY_FAILED] query execution failed: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_UnwrapAndIs(t *testing.T) {
	root := errors.New("disk full")
	err := WrapError(DB_QUERY_FAILED, "insert failed", root)

	assert.ErrorIs(t, err, root)
	assert.ErrorIs(t, err, NewError(DB_QUERY_FAILED, "different message"))
	assert.NotErrorIs(t, err, NewError(DB_OPEN_FAILED, "insert failed"))

	wrapped := fmt.Errorf("outer: %w", err)
	var target *Error
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, DB_QUERY_FAILED, target.Code)
}

func TestNewRetryableError(t *testing.T) {
	err := NewRetryableError(DB_CONNECTION_LOST, "connection lost")
	assert.True(t, err.Retryable)
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsRetryable(NewError(DB_OPEN_FAILED, "no")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCodeOfAndHasCode(t *testing.T) {
	inner := NewError(DB_CONNECTION_LOST, "gone")
	outer := WrapError(DB_QUERY_FAILED, "query failed", inner)

	assert.Equal(t, DB_QUERY_FAILED, CodeOf(outer))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))

	assert.True(t, HasCode(outer, DB_QUERY_FAILED))
	assert.True(t, HasCode(outer, DB_CONNECTION_LOST))
	assert.False(t, HasCode(outer, CONFIG_NOT_FOUND))
	assert.False(t, HasCode(nil, CONFIG_NOT_FOUND))
}

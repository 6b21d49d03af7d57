package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestCLIError(t *testing.T) {
	cause := errors.New("root cause")

	assert.Equal(t, "something went wrong", NewCLIError(ExitError, "something went wrong").Error())
	assert.Equal(t, "operation failed: root cause", WrapError(ExitError, "operation failed", cause).Error())

	wrapped := WrapError(ExitConfigError, "config failed", cause)
	assert.Equal(t, ExitConfigError, wrapped.Code)
	assert.Same(t, cause, wrapped.Unwrap())
	assert.Nil(t, NewCLIError(ExitTimeout, "x").Unwrap())
}

func TestHandleError(t *testing.T) {
	blocked := guardrail.NewGuardrailBlockedError("email", guardrail.GuardrailTypePII,
		guardrail.PhaseInput, guardrail.SeverityHigh, "email jane@example.com detected")

	tests := []struct {
		name     string
		err      error
		wantCode int
		contains string
		absent   string
	}{
		{name: "nil error", err: nil, wantCode: ExitSuccess},
		{name: "context canceled", err: context.Canceled, wantCode: ExitCancelled, contains: "Operation cancelled"},
		{name: "deadline", err: fmt.Errorf("ask: %w", context.DeadlineExceeded), wantCode: ExitTimeout, contains: "timed out"},
		{name: "cli error", err: NewCLIError(ExitEvalFailed, "pass rate 40% below 80%"), wantCode: ExitEvalFailed, contains: "pass rate 40%"},
		{name: "guardrail block", err: fmt.Errorf("ask: %w", blocked), wantCode: ExitBlocked, contains: `guardrail "email"`, absent: "jane@example.com"},
		{name: "config error", err: types.NewError(types.CONFIG_VALIDATION_FAILED, "bad"), wantCode: ExitConfigError, contains: "bad"},
		{name: "upstream", err: rag.NewUpstreamError("graph", errors.New("refused")), wantCode: ExitUpstreamError},
		{name: "other typed", err: types.NewError("SOMETHING", "x"), wantCode: ExitError},
		{name: "generic", err: errors.New("boom"), wantCode: ExitError, contains: "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetErr(&buf)

			assert.Equal(t, tt.wantCode, HandleError(cmd, tt.err))
			if tt.contains != "" {
				assert.Contains(t, buf.String(), tt.contains)
			}
			if tt.absent != "" {
				assert.NotContains(t, buf.String(), tt.absent)
			}
		})
	}
}

func TestHandleError_VerboseCause(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.Flags().Bool("verbose", false, "")
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	cmd.SetErr(&buf)

	code := HandleError(cmd, WrapError(ExitDatabaseError, "index failed", errors.New("disk full")))
	assert.Equal(t, ExitDatabaseError, code)
	assert.Contains(t, buf.String(), "Cause: disk full")
}

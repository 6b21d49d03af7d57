package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitEvalFailed indicates an evaluation run fell below its pass rate
	ExitEvalFailed = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitBlocked indicates a guardrail rejected the question or answer
	ExitBlocked = 5
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitUpstreamError indicates the graph store, note index or model backend was unreachable
	ExitUpstreamError = 11
	// ExitDatabaseError indicates a note index or dataset error
	ExitDatabaseError = 12
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the exit
// code for it.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil {
			verboseFlag := cmd.Flag("verbose")
			if verboseFlag != nil && verboseFlag.Changed {
				cmd.PrintErrln("Cause:", cliErr.Cause)
			}
		}
		return cliErr.Code
	}

	// Guardrail rejections never echo the blocked text.
	var blocked *guardrail.GuardrailBlockedError
	if errors.As(err, &blocked) {
		cmd.PrintErrf("Error: rejected by guardrail %q\n", blocked.GuardrailName)
		return ExitBlocked
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		cmd.PrintErrln("Error:", typed.Error())
		return exitCodeFor(typed.Code)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// exitCodeFor maps error codes to CLI exit codes
func exitCodeFor(code types.ErrorCode) int {
	switch code {
	case types.CONFIG_LOAD_FAILED,
		types.CONFIG_PARSE_FAILED,
		types.CONFIG_VALIDATION_FAILED,
		types.CONFIG_NOT_FOUND:
		return ExitConfigError
	case rag.ErrCodeUpstreamUnavailable:
		return ExitUpstreamError
	default:
		return ExitError
	}
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag
// This is used for panic recovery to determine if stack traces should be shown
func IsVerbose() bool {
	if os.Getenv("GRAPHQA_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}

package eval

import "github.com/zero-day-ai/graphqa/internal/types"

// Eval error codes
const (
	ErrCasesNotFound types.ErrorCode = "EVAL_CASES_NOT_FOUND"
	ErrCasesInvalid  types.ErrorCode = "EVAL_CASES_INVALID"
	ErrExportFailed  types.ErrorCode = "EVAL_EXPORT_FAILED"
)

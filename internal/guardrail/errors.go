package guardrail

import (
	"fmt"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Guardrail error codes
const (
	ErrGuardrailBlocked       types.ErrorCode = "GUARDRAIL_BLOCKED"
	ErrGuardrailConfigInvalid types.ErrorCode = "GUARDRAIL_CONFIG_INVALID"
	ErrGuardrailNotFound      types.ErrorCode = "GUARDRAIL_NOT_FOUND"
)

// GuardrailBlockedError is returned when a guardrail with the Block action
// finds a violation. Reason never contains the offending text.
type GuardrailBlockedError struct {
	GuardrailName string
	GuardrailType GuardrailType
	Phase         Phase
	Severity      Severity
	Reason        string
}

// Error implements the error interface
func (e *GuardrailBlockedError) Error() string {
	return fmt.Sprintf("guardrail '%s' (%s) blocked %s: %s",
		e.GuardrailName, e.GuardrailType, e.Phase, e.Reason)
}

// Unwrap returns nil as this is a terminal error
func (e *GuardrailBlockedError) Unwrap() error {
	return nil
}

// Code returns ErrGuardrailBlocked.
func (e *GuardrailBlockedError) Code() types.ErrorCode {
	return ErrGuardrailBlocked
}

// NewGuardrailBlockedError creates a new GuardrailBlockedError
func NewGuardrailBlockedError(name string, guardType GuardrailType, phase Phase, severity Severity, reason string) *GuardrailBlockedError {
	return &GuardrailBlockedError{
		GuardrailName: name,
		GuardrailType: guardType,
		Phase:         phase,
		Severity:      severity,
		Reason:        reason,
	}
}

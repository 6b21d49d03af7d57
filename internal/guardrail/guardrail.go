package guardrail

// GuardrailType defines the category of guardrail
type GuardrailType string

const (
	GuardrailTypePII GuardrailType = "pii"
)

// Guardrail is a deterministic detect-and-mask check over text. Validate
// and Mask must be pure functions of the text and the guardrail's
// configuration, safe for concurrent use.
type Guardrail interface {
	Name() string
	Type() GuardrailType

	// Validate reports whether text violates the guardrail.
	Validate(text string) Result

	// Mask replaces violating entities in text. It must be idempotent and
	// return text unchanged when masking is disabled.
	Mask(text string) string

	// MaskingEnabled reports whether Mask alters text.
	MaskingEnabled() bool
}

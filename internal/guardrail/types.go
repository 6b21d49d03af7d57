package guardrail

import (
	"fmt"
	"strings"
)

// Action is what happens when a guardrail triggers.
type Action string

const (
	// ActionBlock aborts the current stage with a GuardrailBlockedError.
	ActionBlock Action = "block"

	// ActionWarn logs the violation and masks it when masking is enabled.
	ActionWarn Action = "warn"

	// ActionLog only records the violation.
	ActionLog Action = "log"
)

// ParseAction parses a configured action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionBlock, ActionWarn, ActionLog:
		return a, nil
	default:
		return "", fmt.Errorf("unknown guardrail action %q", s)
	}
}

// Severity ranks a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity parses a configured severity name.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(s)); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown guardrail severity %q", s)
	}
}

// Phase names the trust boundary a check runs at.
type Phase string

const (
	PhaseInput  Phase = "input"
	PhaseOutput Phase = "output"
)

// Result is the outcome of one guardrail validation.
type Result struct {
	Guardrail     string         `json:"guardrail"`
	Triggered     bool           `json:"triggered"`
	Action        Action         `json:"action"`
	Severity      Severity       `json:"severity"`
	Message       string         `json:"message"`
	EntitiesFound []string       `json:"entities_found,omitempty"`
	MaskedText    string         `json:"masked_text,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// Outcome is the manager's verdict for one phase.
type Outcome struct {
	// Text is the text to pass onward, masked where a Warn guardrail with
	// masking enabled triggered.
	Text string

	// Results holds one entry per guardrail in order.
	Results []Result

	// Masked reports whether Text differs from the input.
	Masked bool
}

// Triggered returns the results that triggered.
func (o Outcome) Triggered() []Result {
	var out []Result
	for _, r := range o.Results {
		if r.Triggered {
			out = append(out, r)
		}
	}
	return out
}

// EntityCount returns the number of violating entities across all results.
func (o Outcome) EntityCount() int {
	n := 0
	for _, r := range o.Results {
		n += len(r.EntitiesFound)
	}
	return n
}

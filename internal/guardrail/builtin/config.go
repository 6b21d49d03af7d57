package builtin

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// GuardrailConfig represents a guardrail configuration from YAML
type GuardrailConfig struct {
	Type   string         `mapstructure:"type" yaml:"type" json:"type" validate:"required"`
	Name   string         `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty"`
	Config map[string]any `mapstructure:"config" yaml:"config" json:"config"`
}

// GuardrailsConfig lists the guardrails applied to questions and answers.
type GuardrailsConfig struct {
	Input  []GuardrailConfig `mapstructure:"input" yaml:"input" json:"input" validate:"dive"`
	Output []GuardrailConfig `mapstructure:"output" yaml:"output" json:"output" validate:"dive"`
}

// DefaultGuardrailsConfig masks violating emails in both directions.
func DefaultGuardrailsConfig() GuardrailsConfig {
	email := GuardrailConfig{
		Type: TypeEmail,
		Name: "email",
		Config: map[string]any{
			"action":      string(guardrail.ActionWarn),
			"severity":    string(guardrail.SeverityMedium),
			"mask_emails": true,
			"mask_char":   DefaultMaskChar,
		},
	}
	return GuardrailsConfig{
		Input:  []GuardrailConfig{email},
		Output: []GuardrailConfig{email},
	}
}

// TypeEmail selects EmailGuardrail.
const TypeEmail = "email"

// SupportedGuardrailTypes returns the list of supported guardrail types
func SupportedGuardrailTypes() []string {
	return []string{TypeEmail}
}

// NewManager builds a guardrail.Manager from configuration.
func NewManager(cfg GuardrailsConfig) (*guardrail.Manager, error) {
	in, err := ParseGuardrailConfigs(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("input guardrails: %w", err)
	}
	out, err := ParseGuardrailConfigs(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("output guardrails: %w", err)
	}
	return guardrail.NewManager(in, out), nil
}

// ParseGuardrailConfigs creates Guardrail instances from configurations
func ParseGuardrailConfigs(configs []GuardrailConfig) ([]guardrail.Guardrail, error) {
	guardrails := make([]guardrail.Guardrail, 0, len(configs))

	for i, config := range configs {
		g, err := ParseGuardrailConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse guardrail config at index %d: %w", i, err)
		}
		guardrails = append(guardrails, g)
	}

	return guardrails, nil
}

// ParseGuardrailConfig creates a single Guardrail from configuration
func ParseGuardrailConfig(config GuardrailConfig) (guardrail.Guardrail, error) {
	switch config.Type {
	case TypeEmail:
		return parseEmailConfig(config)
	case "":
		return nil, types.NewError(guardrail.ErrGuardrailConfigInvalid, "guardrail type is required")
	default:
		return nil, types.NewError(guardrail.ErrGuardrailNotFound,
			fmt.Sprintf("unsupported guardrail type: %s (supported types: %v)", config.Type, SupportedGuardrailTypes()))
	}
}

func parseEmailConfig(config GuardrailConfig) (guardrail.Guardrail, error) {
	var emailConfig EmailGuardrailConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &emailConfig,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(config.Config); err != nil {
		return nil, types.WrapError(guardrail.ErrGuardrailConfigInvalid, "failed to decode email config", err)
	}
	if emailConfig.Name == "" {
		emailConfig.Name = config.Name
	}

	g, err := NewEmailGuardrail(emailConfig)
	if err != nil {
		return nil, types.WrapError(guardrail.ErrGuardrailConfigInvalid, "invalid email config", err)
	}
	return g, nil
}

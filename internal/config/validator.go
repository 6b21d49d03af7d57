package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/guardrail/builtin"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate runs the struct tag checks, then each section's own checks, and
// reports every problem found.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errorMessages []string

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}
	}

	sections := []struct {
		name  string
		check func() error
	}{
		{"logging", cfg.Logging.Validate},
		{"tracing", cfg.Tracing.Validate},
		{"metrics", cfg.Metrics.Validate},
		{"langfuse", cfg.Langfuse.Validate},
		{"llm", cfg.LLM.Validate},
		{"embedder", cfg.Embedder.Validate},
		{"graph", cfg.Graph.Validate},
		{"retrieval", cfg.Retrieval.Config.Validate},
		{"quality", cfg.Quality.Validate},
		{"server", cfg.Server.Validate},
		{"eval", cfg.Eval.Validate},
		{"schema", cfg.Schema.validate},
		{"guardrails", func() error {
			_, err := builtin.NewManager(cfg.Guardrails)
			return err
		}},
	}
	for _, s := range sections {
		if err := s.check(); err != nil {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %v", s.name, err))
		}
	}

	if len(errorMessages) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}

func (c SchemaConfig) validate() error {
	if c.Source == schema.SourceFile && c.File == "" {
		return fmt.Errorf("schema.file is required when schema.source is 'file'")
	}
	return nil
}

// formatValidationError formats a single validation error with field path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", fieldPath, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a more readable field path.
// Example: "Config.Retrieval.TopK" -> "retrieval.top_k"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		// Embedded structs add their type name; their fields sit on the parent.
		if parts[i] == "Config" {
			continue
		}
		result = append(result, camelToSnake(parts[i]))
	}

	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

package observability

import (
	"fmt"
	"strings"
)

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider     string  `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=otlp langfuse noop"`
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRate   float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	TLSCertFile  string  `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	InsecureMode bool    `yaml:"insecure_mode" mapstructure:"insecure_mode"`

	// CapturePrompts records LLM prompts and completions on spans.
	CapturePrompts bool `yaml:"capture_prompts" mapstructure:"capture_prompts"`
}

// DefaultTracingConfig returns tracing disabled with full sampling once enabled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Provider:    "otlp",
		Endpoint:    "localhost:4317",
		ServiceName: defaultServiceName,
		SampleRate:  1.0,
	}
}

// Validate validates the TracingConfig fields.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch strings.ToLower(c.Provider) {
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp tracing provider")
		}
	case "langfuse", "noop":
	default:
		return fmt.Errorf("invalid tracing provider: %s (must be one of: otlp, langfuse, noop)", c.Provider)
	}

	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("invalid sample rate: %f (must be between 0.0 and 1.0)", c.SampleRate)
	}
	return nil
}

// LangfuseConfig contains Langfuse ingestion configuration. When enabled,
// quality scores and user feedback are posted to Langfuse, and the langfuse
// tracing provider exports spans there.
type LangfuseConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	PublicKey string `yaml:"public_key" mapstructure:"public_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Host      string `yaml:"host" mapstructure:"host" validate:"omitempty,url"`
}

// DefaultLangfuseConfig returns Langfuse disabled, pointed at the cloud host.
func DefaultLangfuseConfig() LangfuseConfig {
	return LangfuseConfig{Host: "https://cloud.langfuse.com"}
}

// Validate validates the LangfuseConfig fields.
func (c *LangfuseConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.PublicKey == "" {
		return fmt.Errorf("public key is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// DefaultMetricsConfig returns metrics enabled at /metrics.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Path: "/metrics"}
}

// Validate validates the MetricsConfig fields.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got %q", c.Path)
	}
	return nil
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`
	Output     string `yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// DefaultLoggingConfig returns info-level JSON logs on stderr.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stderr",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Validate validates the LoggingConfig fields.
func (c *LoggingConfig) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}

	switch strings.ToLower(c.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be one of: json, text)", c.Format)
	}

	switch strings.ToLower(c.Output) {
	case "", "stdout", "stderr":
	default:
		return fmt.Errorf("invalid log output: %s (must be one of: stdout, stderr)", c.Output)
	}
	return nil
}

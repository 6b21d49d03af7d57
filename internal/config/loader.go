package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/graphqa/internal/types"
	"github.com/zero-day-ai/graphqa/internal/util"
)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
	}
}

// replacedKeys are maps a config file replaces instead of merging into the
// defaults: defining one provider drops the default provider.
var replacedKeys = []string{"llm.providers", "llm.stages", "eval.weights", "quality.dataset.thresholds"}

// Load reads path over the defaults, applies GRAPHQA_* environment
// overrides and ${VAR} interpolation, then validates. Returns an error if
// the file doesn't exist or cannot be parsed.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, types.WrapError(types.CONFIG_NOT_FOUND, fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, fmt.Sprintf("failed to read config file: %s", path), err)
	}

	var omit []string
	for _, key := range replacedKeys {
		if file.IsSet(key) {
			omit = append(omit, key)
		}
	}
	v, err := newViper(omit...)
	if err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(file.AllSettings()); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to merge config file", err)
	}

	return l.finish(v)
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration with environment
// overrides applied.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v, err := newViper()
		if err != nil {
			return nil, err
		}
		return l.finish(v)
	}
	return l.Load(path)
}

// newViper returns a viper seeded with DefaultConfig minus the omitted
// keys. Seeding every key lets AutomaticEnv resolve overrides such as
// GRAPHQA_SERVER_ADDRESS.
func newViper(omit ...string) (*viper.Viper, error) {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to encode defaults", err)
	}
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to decode defaults", err)
	}
	for _, key := range omit {
		deleteKey(defaults, strings.Split(key, "."))
	}

	v := viper.New()
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to load defaults", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func deleteKey(m map[string]interface{}, path []string) {
	if len(path) == 1 {
		delete(m, path[0])
		return
	}
	if child, ok := m[path[0]].(map[string]interface{}); ok {
		deleteKey(child, path[1:])
	}
}

func (l *viperConfigLoader) finish(v *viper.Viper) (*Config, error) {
	settings, _ := interpolateEnvVars(v.AllSettings()).(map[string]interface{})

	var cfg Config
	if err := decode(settings, &cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}
	if err := expandPaths(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to expand config paths", err)
	}

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}
	return &cfg, nil
}

// expandPaths resolves ~ and $VAR in every filesystem path setting.
func expandPaths(cfg *Config) error {
	return util.ExpandPaths(
		&cfg.Core.HomeDir,
		&cfg.Core.DataDir,
		&cfg.Logging.File,
		&cfg.Tracing.TLSCertFile,
		&cfg.Schema.File,
		&cfg.Retrieval.IndexPath,
		&cfg.Quality.Dataset.Path,
		&cfg.Eval.CasesFile,
		&cfg.Eval.JSONL,
	)
}

func decode(settings map[string]interface{}, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

// interpolateEnvVars recursively interpolates environment variables in the config map.
// Supports ${VAR_NAME} syntax.
func interpolateEnvVars(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = interpolateEnvVars(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = interpolateEnvVars(value)
		}
		return result
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables are left as written.
func interpolateString(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}

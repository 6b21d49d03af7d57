package config

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the home directory.
const EnvHome = "GRAPHQA_HOME"

// EnvPrefix prefixes environment overrides, e.g. GRAPHQA_LOGGING_LEVEL.
const EnvPrefix = "GRAPHQA"

// DefaultHomeDir returns $GRAPHQA_HOME, or ~/.graphqa. It falls back to a
// temporary directory if the user home cannot be determined.
func DefaultHomeDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".graphqa")
	}
	return filepath.Join(userHome, ".graphqa")
}

// DefaultConfigPath returns the default config file path for a given home directory
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

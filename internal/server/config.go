package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Config controls the HTTP listener.
type Config struct {
	Address         string        `mapstructure:"address" yaml:"address" validate:"required"`
	Mode            string        `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxQuestionLen  int           `mapstructure:"max_question_length" yaml:"max_question_length" validate:"min=0"`
}

// DefaultConfig listens on localhost:8080 in release mode.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    3 * time.Minute,
		RequestTimeout:  2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxQuestionLen:  2000,
	}
}

// Validate checks the listener settings.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address is required")
	}
	switch c.Mode {
	case "", gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("unknown server mode %q", c.Mode)
	}
	if c.MaxQuestionLen < 0 {
		return fmt.Errorf("max_question_length must not be negative")
	}
	return nil
}

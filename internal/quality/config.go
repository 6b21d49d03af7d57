package quality

import (
	"fmt"
	"slices"
	"time"

	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Defaults.
const (
	DefaultSampleRate = 0.05
	DefaultTimeout    = 60 * time.Second
)

// AllMetrics lists every metric the battery can run, in order.
var AllMetrics = append(slices.Clone(JudgeMetrics), MetricCoverage)

// Config controls automatic scoring.
type Config struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	SampleRate float64       `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Metrics    []string      `mapstructure:"metrics" yaml:"metrics"`

	Dataset DatasetConfig `mapstructure:"dataset" yaml:"dataset"`
}

// DefaultConfig scores 5% of answers with every metric.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		SampleRate: DefaultSampleRate,
		Timeout:    DefaultTimeout,
		Metrics:    slices.Clone(AllMetrics),
		Dataset:    DefaultDatasetConfig(),
	}
}

// Validate checks the configured metric names and rate.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return types.NewError(ErrInvalidConfig, fmt.Sprintf("sample rate %v outside [0,1]", c.SampleRate))
	}
	for _, m := range c.Metrics {
		if !slices.Contains(AllMetrics, m) {
			return types.NewError(ErrUnknownMetric, fmt.Sprintf("unknown quality metric %q", m))
		}
	}
	return c.Dataset.Validate()
}

// NewScorers builds the scorers named in cfg. Judge metrics call completer
// on the judge stage.
func NewScorers(cfg Config, completer llm.Completer) ([]Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := cfg.Metrics
	if len(names) == 0 {
		names = AllMetrics
	}

	scorers := make([]Scorer, 0, len(names))
	for _, name := range names {
		if name == MetricCoverage {
			scorers = append(scorers, NewCoverageScorer())
			continue
		}
		s, err := NewJudgeScorer(name, completer)
		if err != nil {
			return nil, types.WrapError(ErrUnknownMetric, "failed to build scorer", err)
		}
		scorers = append(scorers, s)
	}
	return scorers, nil
}

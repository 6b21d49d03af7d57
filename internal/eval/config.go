package eval

import (
	"fmt"
)

// Config controls `graphqa eval`.
type Config struct {
	// CasesFile is a YAML case file. Empty runs BuiltinCases.
	CasesFile string `mapstructure:"cases_file" yaml:"cases_file"`

	// NumQuestions limits the run to the first N cases. 0 runs all.
	NumQuestions int `mapstructure:"num_questions" yaml:"num_questions" validate:"min=0"`

	// JSONL is where results are written. Empty disables the export.
	JSONL string `mapstructure:"jsonl" yaml:"jsonl"`

	// Weights combine the mean quality scores into one overall score.
	Weights map[string]float64 `mapstructure:"weights" yaml:"weights,omitempty"`

	// MinPassRate fails the run below this fraction of passing cases.
	MinPassRate float64 `mapstructure:"min_pass_rate" yaml:"min_pass_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig runs every built-in case and never fails on pass rate.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks the limits.
func (c Config) Validate() error {
	if c.NumQuestions < 0 {
		return fmt.Errorf("num_questions must not be negative, got %d", c.NumQuestions)
	}
	if c.MinPassRate < 0 || c.MinPassRate > 1 {
		return fmt.Errorf("min_pass_rate must be between 0.0 and 1.0, got %f", c.MinPassRate)
	}
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight for %s must not be negative", name)
		}
	}
	return nil
}

// Cases returns the configured cases, limited to NumQuestions.
func (c Config) Cases() ([]Case, error) {
	cases := BuiltinCases()
	if c.CasesFile != "" {
		loaded, err := LoadCases(c.CasesFile)
		if err != nil {
			return nil, err
		}
		cases = loaded
	}
	return Limit(cases, c.NumQuestions), nil
}

package quality

import (
	"context"
	"fmt"
	"strings"
)

// CoverageScorer checks that extracted entity values appear in the answer.
// The score is the fraction of distinct values found as case-insensitive
// substrings, so a single entity scores exactly 0 or 1.
type CoverageScorer struct{}

// NewCoverageScorer creates a coverage scorer.
func NewCoverageScorer() CoverageScorer {
	return CoverageScorer{}
}

// Name returns MetricCoverage.
func (CoverageScorer) Name() string {
	return MetricCoverage
}

// Applies reports whether any entity values were extracted.
func (CoverageScorer) Applies(in Input) bool {
	return len(distinctValues(in.EntityValues)) > 0
}

// Score computes the covered fraction.
func (CoverageScorer) Score(_ context.Context, in Input) (Score, error) {
	values := distinctValues(in.EntityValues)
	if len(values) == 0 {
		return Score{}, NewScoringError(MetricCoverage, fmt.Errorf("no entity values"))
	}

	answer := strings.ToLower(in.Answer)
	var missing []string
	for _, v := range values {
		if !strings.Contains(answer, strings.ToLower(v)) {
			missing = append(missing, v)
		}
	}

	found := len(values) - len(missing)
	reason := fmt.Sprintf("%d of %d entity values found in the answer", found, len(values))
	if len(missing) > 0 {
		reason += "; missing: " + strings.Join(missing, ", ")
	}
	return Score{
		Name:   MetricCoverage,
		Value:  float64(found) / float64(len(values)),
		Reason: reason,
	}, nil
}

func distinctValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

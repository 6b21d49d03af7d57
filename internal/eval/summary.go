package eval

import (
	"sort"
	"time"

	"github.com/zero-day-ai/graphqa/internal/quality"
)

// Status is the outcome of one case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"

	// StatusErrored means the pipeline returned an error instead of an answer.
	StatusErrored Status = "errored"
)

// Result is the outcome of running one case.
type Result struct {
	Index    int                `json:"index"`
	Question string             `json:"question"`
	Expected []string           `json:"expected_values"`
	Answer   string             `json:"answer,omitempty"`
	Graph    string             `json:"graph_partial_answer,omitempty"`
	Vector   string             `json:"vector_partial_answer,omitempty"`
	Strategy string             `json:"strategy,omitempty"`
	Cypher   string             `json:"cypher,omitempty"`
	Missing  []string           `json:"missing,omitempty"`
	Status   Status             `json:"status"`
	Error    string             `json:"error,omitempty"`
	Degraded []string           `json:"degraded,omitempty"`
	TraceID  string             `json:"trace_id,omitempty"`
	Scores   map[string]float64 `json:"scores,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Passed reports whether every expected value was found.
func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// Summary aggregates a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`

	// PassRate is Passed / Total, 0 for an empty run.
	PassRate float64 `json:"pass_rate"`

	// MeanScores averages each quality metric over the cases that have it.
	MeanScores map[string]float64 `json:"mean_scores"`

	// OverallScore combines MeanScores; see ComputeOverallScore.
	OverallScore float64 `json:"overall_score"`

	Duration time.Duration `json:"duration"`
}

// Summarize aggregates results.
func Summarize(results []Result, duration time.Duration) *Summary {
	s := &Summary{
		Total:      len(results),
		MeanScores: make(map[string]float64),
		Duration:   duration,
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		}
		for name, v := range r.Scores {
			sums[name] += v
			counts[name]++
		}
	}
	for name, sum := range sums {
		s.MeanScores[name] = sum / float64(counts[name])
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
	return s
}

// Metrics returns the names in MeanScores, sorted.
func (s *Summary) Metrics() []string {
	names := make([]string, 0, len(s.MeanScores))
	for name := range s.MeanScores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeOverallScore calculates the overall score from the mean metric
// scores. If weights is empty, all metrics are weighted equally. If weights
// are provided, only metrics named in weights are included and the weights
// are normalized to sum to 1.0. Metrics where lower is better enter as
// 1 - score.
func (s *Summary) ComputeOverallScore(weights map[string]float64) float64 {
	if len(s.MeanScores) == 0 {
		s.OverallScore = 0
		return 0
	}

	var weightSum float64
	for name, weight := range weights {
		if _, ok := s.MeanScores[name]; ok {
			weightSum += weight
		}
	}

	if weightSum == 0 {
		var sum float64
		for name, score := range s.MeanScores {
			sum += oriented(name, score)
		}
		s.OverallScore = sum / float64(len(s.MeanScores))
		return s.OverallScore
	}

	var weighted float64
	for name, score := range s.MeanScores {
		if w, ok := weights[name]; ok {
			weighted += oriented(name, score) * (w / weightSum)
		}
	}
	s.OverallScore = weighted
	return s.OverallScore
}

// oriented flips metrics where 0 is the good end.
func oriented(name string, score float64) float64 {
	switch name {
	case quality.MetricHallucination, quality.MetricModeration:
		return 1 - score
	}
	return score
}

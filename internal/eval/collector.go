package eval

import (
	"context"
	"sort"
	"sync"

	"github.com/zero-day-ai/graphqa/internal/observability"
)

// ScoreCollector keeps every score it receives, indexed by trace. It
// satisfies quality.ScoreSink so a scheduler can write straight into it.
type ScoreCollector struct {
	mu sync.Mutex

	// byTrace holds scores in arrival order.
	// Key: trace id
	byTrace map[string][]observability.Score
	total   int
}

// NewScoreCollector creates an empty collector.
func NewScoreCollector() *ScoreCollector {
	return &ScoreCollector{
		byTrace: make(map[string][]observability.Score),
	}
}

// Scores records scores. It never fails.
func (c *ScoreCollector) Scores(ctx context.Context, scores []observability.Score) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range scores {
		c.byTrace[s.TraceID] = append(c.byTrace[s.TraceID], s)
		c.total++
	}
	return nil
}

// ForTrace returns the scores recorded for traceID, keyed by metric name.
// A metric scored twice keeps the later value.
func (c *ScoreCollector) ForTrace(traceID string) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	scores := c.byTrace[traceID]
	if len(scores) == 0 {
		return nil
	}
	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		out[s.Name] = s.Value
	}
	return out
}

// Traces returns the trace ids seen so far, sorted.
func (c *ScoreCollector) Traces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.byTrace))
	for id := range c.byTrace {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of scores recorded.
func (c *ScoreCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

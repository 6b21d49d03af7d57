package eval

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/graphqa/internal/rag"
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Response, error)
}

// Drainer waits for background scoring to finish.
type Drainer interface {
	Wait(ctx context.Context) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScores attaches the collector the scheduler writes to and the
// scheduler to drain before scores are read.
func WithScores(collector *ScoreCollector, drain Drainer) RunnerOption {
	return func(r *Runner) {
		r.scores = collector
		r.drain = drain
	}
}

// WithProgress is called after each case, before scores are attached.
func WithProgress(fn func(Result)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithWeights sets the weights for the overall score.
func WithWeights(weights map[string]float64) RunnerOption {
	return func(r *Runner) {
		r.weights = weights
	}
}

// Runner runs cases one after another.
type Runner struct {
	asker    Asker
	scores   *ScoreCollector
	drain    Drainer
	progress func(Result)
	weights  map[string]float64
	logger   *slog.Logger
}

// NewRunner creates a runner over asker.
func NewRunner(asker Asker, opts ...RunnerOption) *Runner {
	r := &Runner{
		asker:  asker,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run asks every case. A failed answer is recorded, not returned; the only
// error is ctx ending.
func (r *Runner) Run(ctx context.Context, cases []Case) ([]Result, *Summary, error) {
	start := time.Now()
	results := make([]Result, 0, len(cases))

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return results, Summarize(results, time.Since(start)), err
		}

		res := r.runCase(ctx, i+1, c)
		if res.Status == StatusErrored && ctx.Err() != nil {
			return results, Summarize(results, time.Since(start)), ctx.Err()
		}
		results = append(results, res)
		if r.progress != nil {
			r.progress(res)
		}
	}

	if r.drain != nil {
		if err := r.drain.Wait(ctx); err != nil {
			r.logger.WarnContext(ctx, "scoring did not finish", "error", err)
		}
	}
	if r.scores != nil {
		for i := range results {
			if results[i].TraceID != "" {
				results[i].Scores = r.scores.ForTrace(results[i].TraceID)
			}
		}
	}

	summary := Summarize(results, time.Since(start))
	summary.ComputeOverallScore(r.weights)
	return results, summary, nil
}

func (r *Runner) runCase(ctx context.Context, index int, c Case) Result {
	res := Result{
		Index:    index,
		Question: c.Question,
		Expected: c.ExpectedValues,
	}

	start := time.Now()
	resp, err := r.asker.Ask(ctx, c.Question)
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = StatusErrored
		res.Error = err.Error()
		r.logger.WarnContext(ctx, "evaluation question failed", "index", index, "error", err)
		return res
	}

	res.Answer = resp.Answer
	res.Graph = resp.Graph.Text
	res.Vector = resp.Vector.Text
	res.Strategy = string(resp.Strategy)
	res.Cypher = resp.Cypher
	res.Degraded = resp.Degraded
	res.TraceID = resp.TraceID
	res.Missing = Missing(resp.Answer, c.ExpectedValues)

	res.Status = StatusPassed
	if len(res.Missing) > 0 {
		res.Status = StatusFailed
	}
	return res
}

package eval

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"3", []string{"3", "three"}},
		{"three", []string{"three", "3"}},
		{"Ten", []string{"ten", "10"}},
		{"14", []string{"14"}},
		{"Vito Barton", []string{"vito barton"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Variants(tt.in))
		})
	}
}

func TestMissing(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected []string
		want     []string
	}{
		{"digit as word", "Vito Barton treated three patients.", []string{"Vito Barton", "3"}, nil},
		{"word as digit", "Vito Barton treated 3 patients.", []string{"Vito Barton", "three"}, nil},
		{"case insensitive", "FOOD and Environment", []string{"food", "environment"}, nil},
		{"partial", "Eggs and wheat.", []string{"eggs", "shellfish", "wheat"}, []string{"shellfish"}},
		{"empty answer", "", []string{"14"}, []string{"14"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Missing(tt.answer, tt.expected))
		})
	}
}

func TestBuiltinCases(t *testing.T) {
	cases := BuiltinCases()
	require.Len(t, cases, 10)
	for _, c := range cases {
		assert.NoError(t, c.Validate())
	}
	assert.Len(t, Limit(cases, 3), 3)
	assert.Len(t, Limit(cases, 0), 10)
	assert.Len(t, Limit(cases, 50), 10)
}

func TestLoadCases(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
cases:
  - question: How many patients are immunized for influenza?
    expected_values: ["14"]
  - question: Who treated patient 45?
    expected_values: ["Cletus Paucek"]
`), 0644))

	cases, err := LoadCases(good)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, []string{"Cletus Paucek"}, cases[1].ExpectedValues)

	_, err = LoadCases(filepath.Join(dir, "absent.yaml"))
	assert.True(t, types.HasCode(err, ErrCasesNotFound))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cases:\n  - question: no values\n"), 0644))
	_, err = LoadCases(bad)
	assert.True(t, types.HasCode(err, ErrCasesInvalid))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("cases: []\n"), 0644))
	_, err = LoadCases(empty)
	assert.True(t, types.HasCode(err, ErrCasesInvalid))
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cases, err := cfg.Cases()
	require.NoError(t, err)
	assert.Len(t, cases, 10)

	cfg.NumQuestions = 2
	cases, err = cfg.Cases()
	require.NoError(t, err)
	assert.Len(t, cases, 2)

	assert.Error(t, Config{NumQuestions: -1}.Validate())
	assert.Error(t, Config{MinPassRate: 1.5}.Validate())
	assert.Error(t, Config{Weights: map[string]float64{"usefulness": -1}}.Validate())
}

// fakeAsker answers from a map and writes scores the way a scheduler
// sampling every request would.
type fakeAsker struct {
	answers map[string]string
	fail    map[string]error
	sink    quality.ScoreSink
	n       int
}

func (f *fakeAsker) Ask(ctx context.Context, question string) (*rag.Response, error) {
	if err := f.fail[question]; err != nil {
		return nil, err
	}
	f.n++
	traceID := strings.Repeat(string(rune('a'+f.n)), 32)
	if f.sink != nil {
		_ = f.sink.Scores(ctx, []observability.Score{
			{TraceID: traceID, Name: quality.MetricUsefulness, Value: 0.5 + 0.25*float64(f.n%2)},
			{TraceID: traceID, Name: quality.MetricHallucination, Value: 0},
		})
	}
	return &rag.Response{
		Answer:   f.answers[question],
		Strategy: rag.StrategyMerged,
		TraceID:  traceID,
	}, nil
}

type countingDrainer struct{ calls int }

func (d *countingDrainer) Wait(ctx context.Context) error {
	d.calls++
	return nil
}

func TestRunner(t *testing.T) {
	cases := []Case{
		{Question: "q1", ExpectedValues: []string{"3"}},
		{Question: "q2", ExpectedValues: []string{"eggs", "wheat"}},
		{Question: "q3", ExpectedValues: []string{"x"}},
	}
	collector := NewScoreCollector()
	asker := &fakeAsker{
		answers: map[string]string{"q1": "There are three.", "q2": "Only eggs."},
		fail:    map[string]error{"q3": types.NewError(rag.ErrCodeUpstreamUnavailable, "graph down")},
		sink:    collector,
	}
	drain := &countingDrainer{}

	var seen []Status
	runner := NewRunner(asker,
		WithScores(collector, drain),
		WithProgress(func(r Result) { seen = append(seen, r.Status) }),
	)
	results, summary, err := runner.Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []Status{StatusPassed, StatusFailed, StatusErrored}, seen)
	assert.Equal(t, []string{"wheat"}, results[1].Missing)
	assert.Contains(t, results[2].Error, string(rag.ErrCodeUpstreamUnavailable))
	assert.Equal(t, 1, drain.calls)

	require.NotNil(t, results[0].Scores)
	assert.Contains(t, results[0].Scores, quality.MetricUsefulness)
	assert.Nil(t, results[2].Scores)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errored)
	assert.InDelta(t, 1.0/3, summary.PassRate, 1e-9)
	assert.InDelta(t, 0.625, summary.MeanScores[quality.MetricUsefulness], 1e-9)
	// usefulness 0.625 and inverted hallucination 1.0
	assert.InDelta(t, 0.8125, summary.OverallScore, 1e-9)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	asker := &fakeAsker{answers: map[string]string{"q1": "one"}}

	runner := NewRunner(asker, WithProgress(func(Result) { cancel() }))
	results, _, err := runner.Run(ctx, []Case{
		{Question: "q1", ExpectedValues: []string{"1"}},
		{Question: "q2", ExpectedValues: []string{"2"}},
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, results, 1)
}

func TestComputeOverallScore(t *testing.T) {
	s := &Summary{MeanScores: map[string]float64{
		quality.MetricUsefulness: 0.8,
		quality.MetricModeration: 0.2,
		quality.MetricCoverage:   0.5,
	}}

	assert.InDelta(t, (0.8+0.8+0.5)/3, s.ComputeOverallScore(nil), 1e-9)
	assert.InDelta(t, 0.5, s.ComputeOverallScore(map[string]float64{quality.MetricCoverage: 2}), 1e-9)
	assert.InDelta(t, 0.65, s.ComputeOverallScore(map[string]float64{
		quality.MetricUsefulness: 1,
		quality.MetricCoverage:   1,
		"unknown":                5,
	}), 1e-9)

	empty := &Summary{}
	assert.Zero(t, empty.ComputeOverallScore(nil))
}

func TestExportJSONL(t *testing.T) {
	results := []Result{
		{Index: 1, Question: "q1", Status: StatusPassed, Answer: "three", Duration: time.Second},
		{Index: 2, Question: "q2", Status: StatusFailed, Missing: []string{"wheat"}},
	}
	summary := Summarize(results, 2*time.Second)

	path := filepath.Join(t.TempDir(), "out", "eval.jsonl")
	require.NoError(t, ExportJSONL(path, results, summary))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		kinds = append(kinds, entry["type"].(string))
	}
	assert.Equal(t, []string{EntryTypeResult, EntryTypeResult, EntryTypeSummary}, kinds)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".eval-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReport(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	PrintResult(&buf, Result{Index: 2, Question: "q2", Status: StatusFailed, Answer: "Only\neggs.", Missing: []string{"wheat"}})
	PrintResult(&buf, Result{Index: 3, Question: "q3", Status: StatusErrored, Error: "graph down"})
	PrintSummary(&buf, &Summary{Total: 2, Failed: 1, Errored: 1, MeanScores: map[string]float64{"usefulness": 0.5}})

	out := buf.String()
	assert.Contains(t, out, "[FAILED] Q2: q2")
	assert.Contains(t, out, "answer: Only eggs.")
	assert.Contains(t, out, "missing: wheat")
	assert.Contains(t, out, "[ERRORED] Q3: q3")
	assert.Contains(t, out, "0/2 passed")
	assert.Contains(t, out, "usefulness")
}

package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/graphqa/internal/graphrag"
	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/guardrail/builtin"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/llm/providers"
	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
	"github.com/zero-day-ai/graphqa/internal/types"
)

const seafoodQuestion = "How many patients are allergic to the substance 'seafood'?"

// script answers each generation stage with a fixed reply. Answer calls
// are told apart by whether the context holds a cypher block.
type script struct {
	prune        string
	extract      string
	cypher       string
	graphAnswer  string
	vectorAnswer string
	synthesize   string
	errs         map[llm.Stage]error
}

func defaultScript() script {
	return script{
		prune:        `{"nodes": [{"label": "Patient"}, {"label": "Allergy"}, {"label": "Substance"}], "edges": [{"label": "EXPERIENCES"}, {"label": "CAUSES"}]}`,
		extract:      `{"entities": [{"key": "Substance", "value": "seafood"}]}`,
		cypher:       `{"cypher": "MATCH (p:Patient)-[:EXPERIENCES]->(:Allergy)<-[:CAUSES]-(s:Substance) WHERE toLower(s.name) CONTAINS 'seafood' RETURN count(DISTINCT p) AS patients"}`,
		graphAnswer:  "19",
		vectorAnswer: "4 patients are allergic to seafood based on available notes",
		synthesize:   "merged answer",
	}
}

func stageOf(req llm.CompletionRequest) (llm.Stage, string) {
	system := req.Messages[0].Content
	user := req.Messages[len(req.Messages)-1].Content
	switch {
	case system == prunePrompt:
		return llm.StagePrune, ""
	case system == extractPrompt:
		return llm.StageExtract, ""
	case system == answerPrompt && strings.Contains(user, "<CYPHER>"):
		return llm.StageAnswer, "graph"
	case system == answerPrompt:
		return llm.StageAnswer, "vector"
	case system == synthesizePrompt:
		return llm.StageSynthesize, ""
	default:
		return llm.StageCypher, ""
	}
}

func (s script) respond(req llm.CompletionRequest) (string, error) {
	stage, path := stageOf(req)
	if err := s.errs[stage]; err != nil {
		return "", err
	}
	switch stage {
	case llm.StagePrune:
		return s.prune, nil
	case llm.StageExtract:
		return s.extract, nil
	case llm.StageSynthesize:
		return s.synthesize, nil
	case llm.StageAnswer:
		if path == "graph" {
			return s.graphAnswer, nil
		}
		return s.vectorAnswer, nil
	default:
		return s.cypher, nil
	}
}

type stubRetriever struct {
	mu       sync.Mutex
	passages []retrieval.TextPassage
	err      error
	queries  []string
}

func (r *stubRetriever) Retrieve(_ context.Context, query string) ([]retrieval.TextPassage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	return r.passages, nil
}

func (r *stubRetriever) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

type fixture struct {
	pipeline  *Pipeline
	mock      *providers.MockProvider
	graph     *graph.MockGraphClient
	retriever *stubRetriever
	recorder  *tracetest.SpanRecorder
}

type fixtureOption func(*Dependencies, *Config)

func withGuardrails(m *guardrail.Manager) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Guardrails = m }
}

func withScoring(s *quality.Scheduler) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Scoring = s }
}

func withConfig(fn func(*Config)) fixtureOption {
	return func(_ *Dependencies, c *Config) { fn(c) }
}

func newFixture(t *testing.T, sc script, opts ...fixtureOption) *fixture {
	t.Helper()

	mock := providers.NewMockProviderFunc(sc.respond)
	router, err := llm.NewRouter(llm.LLMConfig{
		DefaultProvider: "mock",
		Providers: map[string]llm.ProviderConfig{
			"mock": {Type: llm.ProviderMock, DefaultModel: "mock-model"},
		},
	}, map[string]llm.LLMProvider{"mock": mock})
	require.NoError(t, err)

	client := graph.NewMockGraphClient()
	client.AddQueryResult(graph.QueryResult{
		Columns: []string{"patients"},
		Records: []map[string]any{{"patients": int64(19)}},
	})

	ret := &stubRetriever{passages: []retrieval.TextPassage{
		{ID: 7, Text: "Patient is allergic to seafood and shellfish.", Score: 0.03},
		{ID: 12, Text: "Seafood allergy noted at intake.", Score: 0.02},
	}}

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	deps := Dependencies{
		LLM:       router,
		Schema:    schema.MustBuiltin(),
		Executor:  graphrag.NewExecutor(client),
		Retriever: ret,
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	p, err := NewPipeline(deps, cfg, WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	return &fixture{pipeline: p, mock: mock, graph: client, retriever: ret, recorder: recorder}
}

func (f *fixture) prompts() []string {
	var out []string
	for _, c := range f.mock.GetCalls() {
		out = append(out, c.Request.Prompt())
	}
	return out
}

func (f *fixture) stageCalls(stage llm.Stage) int {
	n := 0
	for _, c := range f.mock.GetCalls() {
		if s, _ := stageOf(c.Request); s == stage {
			n++
		}
	}
	return n
}

func TestPipeline_GraphWinsNumericConflict(t *testing.T) {
	f := newFixture(t, defaultScript())

	resp, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	assert.Equal(t, "19", resp.Answer)
	assert.Equal(t, StrategyNumericGraph, resp.Strategy)
	assert.Equal(t, "19", resp.Graph.Text)
	assert.Contains(t, resp.Vector.Text, "4 patients")
	assert.Equal(t, []EntityKeyword{{Key: "Substance", Value: "seafood"}}, resp.Entities)
	assert.Contains(t, resp.Cypher, "LIMIT 10")
	assert.Len(t, resp.Passages, 2)
	assert.Empty(t, resp.Degraded)
	assert.NotEmpty(t, resp.TraceID)
	assert.NotEmpty(t, resp.SpanID)

	assert.Equal(t, 0, f.stageCalls(llm.StageSynthesize))
	assert.Equal(t, []string{"Substance seafood"}, f.retriever.calls())
}

func TestPipeline_GraphWinsAverageConflict(t *testing.T) {
	sc := defaultScript()
	sc.graphAnswer = "42"
	sc.vectorAnswer = "The average age is 35 according to the notes."
	sc.synthesize = "The graph says 42 while the notes say 35."

	f := newFixture(t, sc)
	resp, err := f.pipeline.Ask(context.Background(), "What is the average age of patients allergic to seafood?")
	require.NoError(t, err)

	assert.Equal(t, StrategyNumericGraph, resp.Strategy)
	assert.Equal(t, "42", resp.Answer)
	assert.Equal(t, 0, f.stageCalls(llm.StageSynthesize))
}

func TestPipeline_PruneFailureFallsBackToFullSchema(t *testing.T) {
	sc := defaultScript()
	sc.prune = "I cannot help with that."

	f := newFixture(t, sc)
	resp, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	assert.Equal(t, "19", resp.Answer)
	assert.Equal(t, []string{"prune"}, resp.Degraded)

	// The extractor saw the full schema, including nodes pruning would drop.
	for _, p := range f.prompts() {
		if strings.HasPrefix(p, extractPrompt) {
			assert.Contains(t, p, `<node label="Immunization">`)
		}
	}
}

func TestPipeline_ExtractionFailureDegrades(t *testing.T) {
	sc := defaultScript()
	sc.extract = "no json here"

	f := newFixture(t, sc)
	resp, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	assert.Equal(t, []string{"extract"}, resp.Degraded)
	assert.Empty(t, resp.Entities)
	assert.Equal(t, []string{seafoodQuestion}, f.retriever.calls())
}

func TestPipeline_SkipTextWithoutEntities(t *testing.T) {
	sc := defaultScript()
	sc.extract = `{"entities": []}`

	f := newFixture(t, sc, withConfig(func(c *Config) { c.SkipTextWithoutEntities = true }))
	resp, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	assert.Empty(t, f.retriever.calls())
	assert.Equal(t, InsufficientInformation, resp.Vector.Text)
	assert.Equal(t, StrategyGraphOnly, resp.Strategy)
}

func TestPipeline_EmptyContextsAreHonest(t *testing.T) {
	sc := defaultScript()
	sc.cypher = `{"cypher": ""}`

	f := newFixture(t, sc)
	f.retriever.passages = nil

	resp, err := f.pipeline.Ask(context.Background(), "Who treats patient Josef Klein?")
	require.NoError(t, err)

	assert.Equal(t, InsufficientInformation, resp.Answer)
	assert.Equal(t, StrategyInsufficient, resp.Strategy)
	assert.NotContains(t, resp.Answer, "seafood")
	assert.Equal(t, 0, f.stageCalls(llm.StageAnswer))
	assert.Equal(t, 0, f.graph.CallCount())
}

func TestPipeline_InvalidQueryUsesTextPathOnly(t *testing.T) {
	sc := defaultScript()
	sc.vectorAnswer = "The patient is allergic to seafood and shellfish."

	f := newFixture(t, sc)
	f.graph.SetQueryError(types.NewError(graph.ErrCodeGraphInvalidQuery, "Unknown label Alergy"))

	resp, err := f.pipeline.Ask(context.Background(), "Which allergies does patient 45 have?")
	require.NoError(t, err)

	assert.Equal(t, StrategyVectorOnly, resp.Strategy)
	assert.Equal(t, sc.vectorAnswer, resp.Answer)
	assert.Equal(t, InsufficientInformation, resp.Graph.Text)
	assert.False(t, resp.Graph.Generated)
	assert.NotContains(t, strings.ToLower(resp.Answer), "graph")
}

func TestPipeline_NonNumericMergeUsesSynthesis(t *testing.T) {
	sc := defaultScript()
	sc.graphAnswer = "Josef Klein treats Anna Smith."
	sc.vectorAnswer = "Notes mention Arla Fritsch treating Anna Smith."
	sc.synthesize = "The graph says Josef Klein; the notes say Arla Fritsch."

	f := newFixture(t, sc)
	resp, err := f.pipeline.Ask(context.Background(), "Who treats Anna Smith?")
	require.NoError(t, err)

	assert.Equal(t, StrategyMerged, resp.Strategy)
	assert.Equal(t, sc.synthesize, resp.Answer)
	assert.Equal(t, 1, f.stageCalls(llm.StageSynthesize))
}

func TestPipeline_InputBlockShortCircuits(t *testing.T) {
	email, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "block", Severity: "high"})
	require.NoError(t, err)

	f := newFixture(t, defaultScript(), withGuardrails(guardrail.NewManager([]guardrail.Guardrail{email}, nil)))

	resp, err := f.pipeline.Ask(context.Background(), "What is the phone number of john.doe@example.com?")
	require.Error(t, err)
	assert.Nil(t, resp)

	var blocked *guardrail.GuardrailBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, guardrail.PhaseInput, blocked.Phase)
	assert.NotContains(t, err.Error(), "john.doe@example.com")

	assert.Equal(t, 0, f.mock.CallCount())
	assert.Equal(t, 0, f.graph.CallCount())
	assert.Empty(t, f.retriever.calls())
}

func TestPipeline_InputWarnMasksBeforeGeneration(t *testing.T) {
	email, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "warn", MaskEmails: true})
	require.NoError(t, err)

	f := newFixture(t, defaultScript(), withGuardrails(guardrail.NewManager([]guardrail.Guardrail{email}, nil)))

	question := "Which patient has the email john.doe@example.com?"
	_, err = f.pipeline.Ask(context.Background(), question)
	require.NoError(t, err)

	prompts := f.prompts()
	require.NotEmpty(t, prompts)
	for _, p := range prompts {
		assert.NotContains(t, p, "john.doe@example.com")
	}
	assert.Contains(t, prompts[0], "j******e@e******.c**")
}

func TestPipeline_OutputBlock(t *testing.T) {
	email, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "block"})
	require.NoError(t, err)

	sc := defaultScript()
	sc.graphAnswer = "Contact the patient at anna@example.org."
	sc.vectorAnswer = InsufficientInformation

	f := newFixture(t, sc, withGuardrails(guardrail.NewManager(nil, []guardrail.Guardrail{email})))
	resp, err := f.pipeline.Ask(context.Background(), "How can I reach Anna?")

	assert.Nil(t, resp)
	var blocked *guardrail.GuardrailBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, guardrail.PhaseOutput, blocked.Phase)
	assert.NotContains(t, err.Error(), "anna@example.org")
}

func TestPipeline_OutputWarnMasksPartialAnswers(t *testing.T) {
	email, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "warn", MaskEmails: true})
	require.NoError(t, err)

	sc := defaultScript()
	sc.graphAnswer = "Contact the patient at anna@example.org."
	sc.vectorAnswer = InsufficientInformation

	f := newFixture(t, sc, withGuardrails(guardrail.NewManager(nil, []guardrail.Guardrail{email})))
	resp, err := f.pipeline.Ask(context.Background(), "How can I reach Anna?")
	require.NoError(t, err)

	assert.True(t, resp.Masked)
	for _, text := range []string{resp.Answer, resp.Graph.Text, resp.Vector.Text} {
		assert.NotContains(t, text, "anna@example.org")
	}
	assert.Contains(t, resp.Answer, "a**a@e******.o**")
	assert.Contains(t, resp.Graph.Text, "a**a@e******.o**")
	assert.Equal(t, InsufficientInformation, resp.Vector.Text)
}

func TestPipeline_OutputBlockOnPartialAnswer(t *testing.T) {
	email, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "block"})
	require.NoError(t, err)

	sc := defaultScript()
	sc.graphAnswer = "Josef Klein treats Anna Smith."
	sc.vectorAnswer = "Anna Smith is seen by Josef Klein, reachable at josef.klein@clinic.org."
	sc.synthesize = "Josef Klein treats Anna Smith."

	f := newFixture(t, sc, withGuardrails(guardrail.NewManager(nil, []guardrail.Guardrail{email})))
	resp, err := f.pipeline.Ask(context.Background(), "Who treats Anna Smith?")

	assert.Nil(t, resp)
	var blocked *guardrail.GuardrailBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, guardrail.PhaseOutput, blocked.Phase)
	assert.NotContains(t, err.Error(), "josef.klein@clinic.org")
}

func TestPipeline_UpstreamUnavailable(t *testing.T) {
	t.Run("note index", func(t *testing.T) {
		f := newFixture(t, defaultScript())
		f.retriever.err = types.NewError(retrieval.ErrCodeStoreUnavailable, "database is locked")

		_, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
		assert.True(t, types.HasCode(err, ErrCodeUpstreamUnavailable))
		assert.True(t, types.IsRetryable(err))
	})

	t.Run("graph store", func(t *testing.T) {
		f := newFixture(t, defaultScript())
		f.graph.SetQueryError(types.NewError(graph.ErrCodeGraphConnectionFailed, "connection refused"))

		_, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
		assert.True(t, types.HasCode(err, ErrCodeUpstreamUnavailable))
	})

	t.Run("answer model", func(t *testing.T) {
		sc := defaultScript()
		sc.errs = map[llm.Stage]error{llm.StageAnswer: llm.NewProviderUnavailableError("mock", errors.New("503"))}
		f := newFixture(t, sc)

		_, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
		assert.True(t, types.HasCode(err, ErrCodeUpstreamUnavailable))
	})
}

func TestPipeline_EmptyQuestion(t *testing.T) {
	f := newFixture(t, defaultScript())
	_, err := f.pipeline.Ask(context.Background(), "   ")
	assert.True(t, types.HasCode(err, ErrCodeInvalidQuestion))
	assert.Equal(t, 0, f.mock.CallCount())
}

func TestPipeline_CypherAwaitsEntities(t *testing.T) {
	f := newFixture(t, defaultScript(), withConfig(func(c *Config) { c.CypherAwaitsEntities = true }))
	_, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	var cypherPrompt string
	for _, c := range f.mock.GetCalls() {
		if s, _ := stageOf(c.Request); s == llm.StageCypher {
			cypherPrompt = c.Request.Prompt()
		}
	}
	assert.Contains(t, cypherPrompt, "Important terms")
	assert.Contains(t, cypherPrompt, "Substance seafood")
}

type scoreSink struct {
	mu     sync.Mutex
	scores []observability.Score
}

func (s *scoreSink) Scores(_ context.Context, scores []observability.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, scores...)
	return nil
}

func TestPipeline_ScoresCoverage(t *testing.T) {
	sc := defaultScript()
	sc.extract = `{"entities": [{"key": "Practitioner", "value": "Josef Klein"}]}`
	sc.graphAnswer = "Josef Klein treats Anna Smith and Lee Wong."
	sc.vectorAnswer = InsufficientInformation

	sink := &scoreSink{}
	battery := quality.NewBattery([]quality.Scorer{quality.NewCoverageScorer()}, quality.WithSink(sink))
	scheduler := quality.NewScheduler(battery, quality.NewRateSampler(1), time.Second, nil)

	f := newFixture(t, sc, withScoring(scheduler))
	resp, err := f.pipeline.Ask(context.Background(), "Which patients does Josef Klein treat?")
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.scores, 1)
	assert.Equal(t, quality.MetricCoverage, sink.scores[0].Name)
	assert.Equal(t, 1.0, sink.scores[0].Value)
	assert.Equal(t, resp.TraceID, sink.scores[0].TraceID)
}

type inputCollector struct {
	mu     sync.Mutex
	inputs []quality.Input
}

func (c *inputCollector) Collect(_ context.Context, _ quality.TraceRef, in quality.Input, _ []quality.Score) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, in)
	return nil
}

func TestPipeline_CollectsPromptAndModel(t *testing.T) {
	collector := &inputCollector{}
	battery := quality.NewBattery([]quality.Scorer{quality.NewCoverageScorer()}, quality.WithCollector(collector))
	scheduler := quality.NewScheduler(battery, quality.NewRateSampler(1), time.Second, nil)

	f := newFixture(t, defaultScript(), withScoring(scheduler))
	resp, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)
	require.NoError(t, scheduler.Wait(context.Background()))

	collector.mu.Lock()
	defer collector.mu.Unlock()
	require.Len(t, collector.inputs, 1)
	in := collector.inputs[0]

	assert.Equal(t, resp.Answer, in.Answer)
	assert.Equal(t, "mock-model", in.Model)
	assert.True(t, strings.HasPrefix(in.Prompt, answerPrompt), "numeric answers keep the graph answer prompt")
	assert.Contains(t, in.Prompt, "<CYPHER>")
	assert.Equal(t, string(StrategyNumericGraph), in.Metadata["strategy"])
	assert.Equal(t, resp.Cypher, in.Metadata["cypher"])
}

func TestPipeline_Spans(t *testing.T) {
	f := newFixture(t, defaultScript())
	_, err := f.pipeline.Ask(context.Background(), seafoodQuestion)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range f.recorder.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{SpanAsk, SpanPrune, SpanExtract, SpanCypher, SpanGraphBranch, SpanTextBranch, SpanSynthesize} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(Dependencies{}, DefaultConfig())
	assert.True(t, types.HasCode(err, ErrCodeInvalidConfig))
}

package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/graphqa/internal/graphrag"
	"github.com/zero-day-ai/graphqa/internal/graphrag/cypher"
	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Span names.
const (
	SpanAsk         = "graphqa.rag.ask"
	SpanPrune       = "graphqa.rag.prune"
	SpanExtract     = "graphqa.rag.extract"
	SpanCypher      = "graphqa.rag.cypher"
	SpanGraphBranch = "graphqa.rag.graph_branch"
	SpanTextBranch  = "graphqa.rag.text_branch"
	SpanSynthesize  = "graphqa.rag.synthesize"
)

// Span attribute keys.
const (
	AttrEntities   = "graphqa.rag.entities"
	AttrDangling   = "graphqa.rag.entities.dangling"
	AttrPruned     = "graphqa.rag.schema.nodes"
	AttrDegraded   = "graphqa.rag.degraded"
	AttrStrategy   = "graphqa.rag.strategy"
	AttrCypher     = "graphqa.rag.cypher"
	AttrSufficient = "graphqa.rag.sufficient"
	AttrOutcome    = "graphqa.rag.outcome"
)

// Request outcomes recorded in metrics.
const (
	OutcomeAnswered = "answered"
	OutcomeBlocked  = "blocked"
	OutcomeFailed   = "failed"
	OutcomeUpstream = "upstream_unavailable"
)

// QueryGenerator produces one graph statement for a question.
type QueryGenerator interface {
	Generate(ctx context.Context, question, schemaXML, importantTerms string) (cypher.Generation, error)
}

// GraphExecutor runs a graph statement. Invalid statements come back as a
// failed result, not as an error.
type GraphExecutor interface {
	Execute(ctx context.Context, query string) (graphrag.GraphResult, error)
}

// TextRetriever runs hybrid search over the note index.
type TextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.TextPassage, error)
}

// Config controls the pipeline shape.
type Config struct {
	// CypherAwaitsEntities runs entity extraction before cypher generation
	// so the generator sees the important terms. By default both run
	// concurrently and the generator works from the question alone.
	CypherAwaitsEntities bool `mapstructure:"cypher_awaits_entities" yaml:"cypher_awaits_entities"`

	// SkipTextWithoutEntities gives the text path no context when no
	// entities were extracted, instead of searching with the question.
	SkipTextWithoutEntities bool `mapstructure:"skip_text_without_entities" yaml:"skip_text_without_entities"`

	Synthesis SynthesisPolicy `mapstructure:"synthesis" yaml:"synthesis"`
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{Synthesis: DefaultSynthesisPolicy()}
}

// Dependencies are the collaborators a Pipeline needs.
type Dependencies struct {
	LLM        llm.Completer
	Schema     *schema.GraphSchema
	Generator  QueryGenerator
	Executor   GraphExecutor
	Retriever  TextRetriever
	Guardrails *guardrail.Manager

	// Scoring is optional. Without it no answer is scored.
	Scoring *quality.Scheduler
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTracer sets the tracer for stage spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Response is the answer to one question.
type Response struct {
	Answer   string
	Graph    PartialAnswer
	Vector   PartialAnswer
	Strategy Strategy

	Entities []EntityKeyword
	Cypher   string
	Passages []retrieval.TextPassage

	// Degraded names the stages that fell back to their default.
	Degraded []string

	// Masked reports whether the output guardrail masked the answer.
	Masked bool

	TraceID string
	SpanID  string
}

// Pipeline answers questions. It is safe for concurrent use; requests share
// only the read-only schema and the store handles.
type Pipeline struct {
	pruner      *SchemaPruner
	extractor   *EntityExtractor
	generator   QueryGenerator
	executor    GraphExecutor
	retriever   TextRetriever
	synthesizer *Synthesizer
	guard       *guardrail.Manager
	scoring     *quality.Scheduler

	cfg     Config
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewPipeline wires a pipeline from deps.
func NewPipeline(deps Dependencies, cfg Config, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.LLM == nil:
		return nil, types.NewError(ErrCodeInvalidConfig, "pipeline requires a language model")
	case deps.Schema == nil || deps.Schema.IsEmpty():
		return nil, types.NewError(schema.ErrCodeSchemaInvalid, "pipeline requires a graph schema")
	case deps.Executor == nil || deps.Retriever == nil:
		return nil, types.NewError(ErrCodeInvalidConfig, "pipeline requires a graph executor and a text retriever")
	}

	p := &Pipeline{
		generator: deps.Generator,
		executor:  deps.Executor,
		retriever: deps.Retriever,
		guard:     deps.Guardrails,
		scoring:   deps.Scoring,
		cfg:       cfg,
		metrics:   observability.NoopMetrics(),
		tracer:    noop.NewTracerProvider().Tracer(observability.InstrumentationName),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.generator == nil {
		p.generator = cypher.NewGenerator(deps.LLM, cypher.WithLogger(p.logger))
	}
	if p.guard == nil {
		p.guard = guardrail.NewManager(nil, nil)
	}
	p.pruner = NewSchemaPruner(deps.LLM, deps.Schema, p.logger)
	p.extractor = NewEntityExtractor(deps.LLM, p.logger)
	p.synthesizer = NewSynthesizer(deps.LLM, cfg.Synthesis, p.logger)
	return p, nil
}

// Ask answers question. It returns a *guardrail.GuardrailBlockedError when a
// guardrail blocks the question or the answer, an error with
// ErrCodeUpstreamUnavailable when a store or model backend is unreachable,
// and otherwise an answer, which may state that information is missing.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Response, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, SpanAsk, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	resp, err := p.ask(ctx, question)

	outcome := OutcomeAnswered
	if err != nil {
		var blocked *guardrail.GuardrailBlockedError
		switch {
		case errors.As(err, &blocked):
			outcome = OutcomeBlocked
		case IsUpstreamUnavailable(err):
			outcome = OutcomeUpstream
		default:
			outcome = OutcomeFailed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(types.CodeOf(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String(AttrOutcome, outcome))
	p.metrics.RecordRequest(ctx, outcome, time.Since(start))

	return resp, err
}

func (p *Pipeline) ask(ctx context.Context, question string) (*Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.NewError(ErrCodeInvalidQuestion, "question cannot be empty")
	}

	in, err := p.guard.ProcessInput(ctx, question)
	p.recordGuardrails(ctx, guardrail.PhaseInput, in)
	if err != nil {
		return nil, err
	}
	q := in.Text
	p.logger.DebugContext(ctx, "answering question", "question", q, "masked", in.Masked)

	resp := &Response{
		TraceID: observability.TraceIDFromContext(ctx),
		SpanID:  observability.SpanIDFromContext(ctx),
	}

	pruned, err := stage(ctx, p, SpanPrune, func(ctx context.Context) (PrunedSchema, error) {
		return p.pruner.Prune(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if pruned.Degraded {
		p.degraded(ctx, resp, "prune", pruned.Reason)
	}

	extraction, gen, err := p.extractAndGenerate(ctx, q, pruned)
	if err != nil {
		return nil, err
	}
	if extraction.Degraded {
		p.degraded(ctx, resp, "extract", extraction.Reason)
	}
	resp.Entities = extraction.Entities
	resp.Cypher = gen.Query

	terms := ImportantTerms(extraction.Entities)

	var graphAnswer, vectorAnswer PartialAnswer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		graphAnswer, err = stage(gctx, p, SpanGraphBranch, func(ctx context.Context) (PartialAnswer, error) {
			return p.graphBranch(ctx, q, gen.Query)
		})
		return err
	})
	g.Go(func() error {
		var err error
		vectorAnswer, err = stage(gctx, p, SpanTextBranch, func(ctx context.Context) (PartialAnswer, error) {
			answer, passages, err := p.textBranch(ctx, q, terms)
			resp.Passages = passages
			return answer, err
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	synthesized, err := stage(ctx, p, SpanSynthesize, func(ctx context.Context) (SynthesizedAnswer, error) {
		s, err := p.synthesizer.Synthesize(ctx, q, graphAnswer, vectorAnswer)
		if err != nil {
			return s, p.classify("synthesis", err)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(AttrStrategy, string(s.Strategy)))
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.guardOutput(ctx, resp, synthesized); err != nil {
		return nil, err
	}
	resp.Strategy = synthesized.Strategy

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(AttrEntities, len(resp.Entities)),
		attribute.Int(AttrPruned, len(pruned.Schema.Nodes)),
		attribute.StringSlice(AttrDegraded, resp.Degraded),
		attribute.String(AttrStrategy, string(resp.Strategy)),
	)

	p.scoring.Submit(ctx, quality.Input{
		Question:     q,
		Answer:       resp.Answer,
		Context:      nonEmpty(resp.Graph.Context, resp.Vector.Context),
		EntityValues: EntityValues(resp.Entities),
		Prompt:       synthesized.Prompt,
		Model:        synthesized.Model,
		Metadata:     scoringMetadata(resp),
	})

	return resp, nil
}

// extractAndGenerate runs entity extraction and cypher generation, either
// concurrently or, with CypherAwaitsEntities, one after the other.
func (p *Pipeline) extractAndGenerate(ctx context.Context, q string, pruned PrunedSchema) (Extraction, cypher.Generation, error) {
	var (
		extraction Extraction
		gen        cypher.Generation
	)

	extract := func(ctx context.Context) error {
		var err error
		extraction, err = stage(ctx, p, SpanExtract, func(ctx context.Context) (Extraction, error) {
			x, err := p.extractor.Extract(ctx, q, pruned)
			if err == nil {
				trace.SpanFromContext(ctx).SetAttributes(
					attribute.Int(AttrEntities, len(x.Entities)),
					attribute.Int(AttrDangling, len(x.Dangling)),
				)
			}
			return x, err
		})
		return err
	}
	generate := func(ctx context.Context, terms string) error {
		var err error
		gen, err = stage(ctx, p, SpanCypher, func(ctx context.Context) (cypher.Generation, error) {
			return p.generate(ctx, q, terms)
		})
		return err
	}

	if p.cfg.CypherAwaitsEntities {
		if err := extract(ctx); err != nil {
			return Extraction{}, cypher.Generation{}, err
		}
		err := generate(ctx, ImportantTerms(extraction.Entities))
		return extraction, gen, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return extract(gctx) })
	g.Go(func() error { return generate(gctx, "") })
	err := g.Wait()
	return extraction, gen, err
}

// generate asks for a statement over the full schema. Generation failures
// other than an unreachable backend leave the graph path without a query.
func (p *Pipeline) generate(ctx context.Context, q, terms string) (cypher.Generation, error) {
	_, fullXML := p.pruner.Full()
	gen, err := p.generator.Generate(ctx, q, fullXML, terms)
	if err != nil {
		if ctx.Err() != nil || IsUpstreamUnavailable(err) {
			return cypher.Generation{}, p.classify("cypher generation", err)
		}
		p.logger.WarnContext(ctx, "cypher generation failed, graph path has no query", "error", err)
		p.metrics.RecordDegraded(ctx, "cypher", string(types.CodeOf(err)))
		return cypher.Generation{}, nil
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(AttrCypher, gen.Query))
	return gen, nil
}

func (p *Pipeline) graphBranch(ctx context.Context, q, query string) (PartialAnswer, error) {
	result, err := p.executor.Execute(ctx, query)
	if err != nil {
		return PartialAnswer{}, p.classify("graph store", err)
	}
	if result.Failed() {
		p.logger.InfoContext(ctx, "graph path has no context", "code", result.FailureCode())
	}

	answer, err := p.synthesizer.Answer(ctx, PathGraph, q, result.Context())
	if err != nil {
		return PartialAnswer{}, p.classify("graph answer", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool(AttrSufficient, answer.Sufficient()))
	return answer, nil
}

func (p *Pipeline) textBranch(ctx context.Context, q, terms string) (PartialAnswer, []retrieval.TextPassage, error) {
	query := terms
	if query == "" && !p.cfg.SkipTextWithoutEntities {
		query = q
	}

	var passages []retrieval.TextPassage
	if query != "" {
		var err error
		passages, err = p.retriever.Retrieve(ctx, query)
		if err != nil {
			return PartialAnswer{}, nil, p.classify("note index", err)
		}
	}

	answer, err := p.synthesizer.Answer(ctx, PathVector, q, retrieval.PassageContext(passages))
	if err != nil {
		return PartialAnswer{}, nil, p.classify("text answer", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool(AttrSufficient, answer.Sufficient()))
	return answer, passages, nil
}

// classify maps an unreachable backend to ErrCodeUpstreamUnavailable and any
// other failure to ErrCodeAnswerFailed. Context errors pass through.
func (p *Pipeline) classify(component string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if types.HasCode(err, ErrCodeUpstreamUnavailable) || types.HasCode(err, ErrCodeAnswerFailed) {
		return err
	}
	if IsUpstreamUnavailable(err) {
		return NewUpstreamError(component, err)
	}
	return types.WrapError(ErrCodeAnswerFailed, component+" failed", err)
}

func (p *Pipeline) degraded(ctx context.Context, resp *Response, stageName string, reason error) {
	resp.Degraded = append(resp.Degraded, stageName)
	cause := "error"
	var typed *types.Error
	if errors.As(reason, &typed) && typed.Cause != nil {
		if code := types.CodeOf(typed.Cause); code != "" {
			cause = string(code)
		}
	}
	p.metrics.RecordDegraded(ctx, stageName, cause)
}

// guardOutput runs the output guardrails over the answer and over every
// generated partial answer, since all of them leave the process. A block on
// any text blocks the response.
func (p *Pipeline) guardOutput(ctx context.Context, resp *Response, s SynthesizedAnswer) error {
	out, err := p.guard.ProcessOutput(ctx, s.Text)
	p.recordGuardrails(ctx, guardrail.PhaseOutput, out)
	if err != nil {
		return err
	}
	resp.Answer = out.Text
	resp.Masked = out.Masked

	resp.Graph, resp.Vector = s.Graph, s.Vector
	for _, partial := range []*PartialAnswer{&resp.Graph, &resp.Vector} {
		if !partial.Generated {
			continue
		}
		out, err := p.guard.ProcessOutput(ctx, partial.Text)
		p.recordGuardrails(ctx, guardrail.PhaseOutput, out)
		if err != nil {
			return err
		}
		partial.Text = out.Text
		resp.Masked = resp.Masked || out.Masked
	}
	return nil
}

func (p *Pipeline) recordGuardrails(ctx context.Context, phase guardrail.Phase, outcome guardrail.Outcome) {
	for _, r := range outcome.Triggered() {
		p.metrics.RecordGuardrail(ctx, string(phase), string(r.Action))
	}
}

// stage runs fn in a named span and records its duration.
func stage[T any](ctx context.Context, p *Pipeline, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.RecordStage(ctx, name, time.Since(start))
	return v, err
}

func scoringMetadata(resp *Response) map[string]string {
	md := map[string]string{"strategy": string(resp.Strategy)}
	if resp.Cypher != "" {
		md["cypher"] = resp.Cypher
	}
	if len(resp.Degraded) > 0 {
		md["degraded"] = strings.Join(resp.Degraded, ",")
	}
	if resp.Masked {
		md["masked"] = "true"
	}
	return md
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

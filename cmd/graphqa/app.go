package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/graphqa/internal/config"
	"github.com/zero-day-ai/graphqa/internal/database"
	"github.com/zero-day-ai/graphqa/internal/graphrag"
	"github.com/zero-day-ai/graphqa/internal/graphrag/cypher"
	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/guardrail/builtin"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/llm/providers"
	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
)

// shutdownTimeout bounds flushing telemetry and closing stores on exit.
const shutdownTimeout = 10 * time.Second

// env carries the ambient stack every command shares.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
	meters  *observability.MetricsProvider

	closers []func(context.Context) error
}

// newEnv sets up logging, tracing and metrics from cfg. The logger also
// becomes the slog default.
func newEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	logger, logCloser, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger}
	e.onClose(func(context.Context) error { return closeIO(logCloser) })

	tp, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Langfuse)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.tracer = tp.Tracer(observability.InstrumentationName)
	e.onClose(flushTracing(tp))

	mp, err := observability.InitMetrics(cfg.Metrics)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.meters = mp
	e.onClose(mp.Shutdown)

	e.metrics, err = observability.NewMetrics(mp.Meter())
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) onClose(fn func(context.Context) error) {
	e.closers = append(e.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	e.closers = nil
	return result.ErrorOrNil()
}

func flushTracing(tp *sdktrace.TracerProvider) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}
}

func closeIO(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

// newEmbedder builds the configured embedding client.
func (e *env) newEmbedder() (embedder.Embedder, error) {
	return embedder.CreateEmbedder(e.cfg.Embedder)
}

// openNotes opens the note index. A query process opens an existing index
// read-only; a missing index is created empty so the text path simply finds
// nothing.
func (e *env) openNotes(ctx context.Context, writable bool) (*retrieval.SQLiteNoteStore, error) {
	path := e.cfg.Retrieval.IndexPath
	dbcfg := database.DefaultConfig(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if !writable {
			e.logger.Warn("note index not found, creating an empty one", "path", path)
		}
		writable = true
	}
	if writable {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dbcfg.ReadOnly = !writable

	store, err := retrieval.OpenSQLiteNoteStore(ctx, dbcfg)
	if err != nil {
		return nil, err
	}
	e.onClose(func(context.Context) error { return store.Close() })
	return store, nil
}

// connectGraph creates the Neo4j client and tries to connect. A failed
// connect is returned alongside the client so callers can decide whether it
// is fatal.
func (e *env) connectGraph(ctx context.Context) (*graph.Neo4jClient, error) {
	client, err := graph.NewNeo4jClient(e.cfg.Graph)
	if err != nil {
		return nil, err
	}
	e.onClose(client.Close)
	return client, client.Connect(ctx)
}

// loadSchema resolves the graph schema from its configured source.
func loadSchema(ctx context.Context, sc config.SchemaConfig, client graph.GraphClient) (*schema.GraphSchema, error) {
	switch sc.Source {
	case schema.SourceFile:
		return schema.LoadFile(sc.File)
	case schema.SourceIntrospect:
		return graph.Introspect(ctx, client)
	default:
		return schema.Builtin()
	}
}

// appOptions adjust pipeline wiring per command.
type appOptions struct {
	sampleRate *float64
	sinks      []quality.ScoreSink
}

type appOption func(*appOptions)

// withSampleRate overrides quality.sample_rate and forces scoring on.
func withSampleRate(rate float64) appOption {
	return func(o *appOptions) { o.sampleRate = &rate }
}

// withScoreSink adds a sink that receives every quality score.
func withScoreSink(sink quality.ScoreSink) appOption {
	return func(o *appOptions) { o.sinks = append(o.sinks, sink) }
}

// app is the fully wired question-answering stack.
type app struct {
	*env

	router    *llm.Router
	graph     *graph.Neo4jClient
	notes     *retrieval.SQLiteNoteStore
	retriever *retrieval.HybridRetriever
	schema    *schema.GraphSchema
	pipeline  *rag.Pipeline
	scheduler *quality.Scheduler
	feedback  *quality.FeedbackRecorder
}

// newApp wires every pipeline collaborator from cfg. The caller owns Close.
func newApp(ctx context.Context, cfg *config.Config, opts ...appOption) (*app, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	e, err := newEnv(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{env: e}
	if err := a.wire(ctx, o); err != nil {
		e.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, o appOptions) error {
	cfg := a.cfg

	set, err := providers.NewProviderSet(cfg.LLM)
	if err != nil {
		return err
	}
	a.router, err = llm.NewRouter(cfg.LLM, set)
	if err != nil {
		return err
	}
	completer := observability.NewTracedCompleter(a.router,
		observability.WithCompleterTracer(a.tracer),
		observability.WithCompleterMetrics(a.metrics),
		observability.WithCompleterLogger(a.logger),
		observability.WithPromptCapture(cfg.Tracing.CapturePrompts),
	)

	client, err := a.connectGraph(ctx)
	if client == nil {
		return err
	}
	a.graph = client
	if err != nil {
		if cfg.Schema.Source == schema.SourceIntrospect {
			return err
		}
		// Graph questions fail as upstream errors until Neo4j is reachable.
		a.logger.Warn("graph store unavailable", "uri", cfg.Graph.URI, "error", err)
	}

	a.schema, err = loadSchema(ctx, cfg.Schema, client)
	if err != nil {
		return err
	}
	a.logger.Info("graph schema loaded",
		"source", cfg.Schema.Source,
		"nodes", len(a.schema.Nodes),
		"edges", len(a.schema.Edges))

	a.notes, err = a.openNotes(ctx, false)
	if err != nil {
		return err
	}
	emb, err := a.newEmbedder()
	if err != nil {
		return err
	}
	a.retriever, err = retrieval.NewHybridRetriever(a.notes, emb, cfg.Retrieval.Config,
		retrieval.WithTracer(a.tracer),
		retrieval.WithLogger(a.logger))
	if err != nil {
		return err
	}

	guards, err := builtin.NewManager(cfg.Guardrails)
	if err != nil {
		return err
	}
	guards.WithTracer(a.tracer).WithLogger(a.logger)

	generator := cypher.NewGenerator(completer,
		cypher.WithLogger(a.logger),
		cypher.WithPolicy(cypher.NewPolicy(cfg.Cypher)))
	executor := graphrag.NewExecutor(client,
		graphrag.WithTracer(a.tracer),
		graphrag.WithLogger(a.logger))

	sink := a.scoreSink(o.sinks)
	a.feedback = quality.NewFeedbackRecorder(sink, a.metrics, a.logger)
	a.scheduler, err = a.newScheduler(ctx, completer, sink, o.sampleRate)
	if err != nil {
		return err
	}
	if a.scheduler != nil {
		a.onClose(a.scheduler.Wait)
	}

	a.pipeline, err = rag.NewPipeline(rag.Dependencies{
		LLM:        completer,
		Schema:     a.schema,
		Generator:  generator,
		Executor:   executor,
		Retriever:  a.retriever,
		Guardrails: guards,
		Scoring:    a.scheduler,
	}, cfg.Pipeline(),
		rag.WithTracer(a.tracer),
		rag.WithLogger(a.logger),
		rag.WithMetrics(a.metrics))
	return err
}

// scoreSink fans scores out to the log, to Langfuse when enabled, and to
// any extra sinks.
func (a *app) scoreSink(extra []quality.ScoreSink) quality.ScoreSink {
	sinks := quality.MultiSink{quality.NewLogSink(a.logger)}
	if a.cfg.Langfuse.Enabled {
		lf, err := observability.NewLangfuseClient(a.cfg.Langfuse)
		if err != nil {
			a.logger.Warn("langfuse scores disabled", "error", err)
		} else {
			sinks = append(sinks, lf)
		}
	}
	return append(sinks, extra...)
}

// newScheduler returns nil when scoring is disabled and not forced.
func (a *app) newScheduler(ctx context.Context, completer llm.Completer, sink quality.ScoreSink, rate *float64) (*quality.Scheduler, error) {
	qc := a.cfg.Quality
	if rate != nil {
		qc.Enabled = true
		qc.SampleRate = *rate
	}
	if !qc.Enabled {
		return nil, nil
	}

	scorers, err := quality.NewScorers(qc, completer)
	if err != nil {
		return nil, err
	}
	opts := []quality.BatteryOption{
		quality.WithSink(sink),
		quality.WithMetrics(a.metrics),
		quality.WithTracer(a.tracer),
		quality.WithLogger(a.logger),
	}
	if qc.Dataset.Enabled {
		ds, err := quality.OpenDataset(ctx, qc.Dataset, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return ds.Close() })
		opts = append(opts, quality.WithCollector(ds))
	}
	battery := quality.NewBattery(scorers, opts...)
	return quality.NewScheduler(battery, quality.NewRateSampler(qc.SampleRate), qc.Timeout, a.logger), nil
}

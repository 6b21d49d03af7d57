package graphrag

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Executor runs generated statements against the graph store.
// Thread-safety: safe for concurrent use when the client is.
type Executor struct {
	client graph.GraphClient
	tracer trace.Tracer
	logger *slog.Logger
}

// ExecutorOption configures optional Executor behaviour.
type ExecutorOption func(*Executor)

// WithTracer sets the tracer used for execution spans.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor over client.
func NewExecutor(client graph.GraphClient, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client: client,
		tracer: noop.NewTracerProvider().Tracer("graphqa.graphrag"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs query and captures any execution failure in the result.
// The returned error is non-nil only when the store is unreachable or ctx
// is done; callers must not treat an invalid query as a request failure.
func (e *Executor) Execute(ctx context.Context, query string) (GraphResult, error) {
	ctx, span := e.tracer.Start(ctx, SpanGraphExecute)
	defer span.End()

	if query == "" {
		res := FailedResult("", types.NewError(graph.ErrCodeGraphInvalidQuery, "no statement to execute"))
		span.SetAttributes(ResultAttributes(res)...)
		return res, nil
	}

	qr, err := e.client.Query(ctx, query, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "canceled")
			return GraphResult{}, ctxErr
		}
		if graph.IsUnavailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return GraphResult{}, err
		}

		res := FailedResult(query, err)
		span.SetAttributes(ResultAttributes(res)...)
		span.AddEvent("query failed", trace.WithAttributes(attribute.String("error.message", err.Error())))
		e.logger.WarnContext(ctx, "graph query failed",
			"code", res.FailureCode(),
			"error", errorMessage(err),
			"query", query)
		return res, nil
	}

	res := GraphResult{
		Query:    query,
		Columns:  qr.Columns,
		Rows:     qr.Records,
		Duration: qr.Summary.ExecutionTime,
	}
	span.SetAttributes(ResultAttributes(res)...)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// errorMessage prefers the structured message over the wrapped chain.
func errorMessage(err error) string {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}

// Health reports the store's health.
func (e *Executor) Health(ctx context.Context) types.HealthStatus {
	return e.client.Health(ctx)
}

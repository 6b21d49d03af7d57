package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachedContext returns a context that carries the span context of ctx but
// none of its deadline or cancellation. Work that outlives a request, such as
// background scoring, starts from it so its spans stay in the request trace.
func DetachedContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return context.Background()
	}
	return trace.ContextWithSpanContext(context.Background(), sc)
}

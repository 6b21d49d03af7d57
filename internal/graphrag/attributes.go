package graphrag

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys recorded on graph execution spans.
const (
	// AttrGraphQuery is the executed statement
	AttrGraphQuery = "graphqa.graph.query"

	// AttrGraphRowCount is the number of rows returned
	AttrGraphRowCount = "graphqa.graph.row_count"

	// AttrGraphDurationMs is the store-side execution time in milliseconds
	AttrGraphDurationMs = "graphqa.graph.duration_ms"

	// AttrGraphFailure is the error code of a failed execution
	AttrGraphFailure = "graphqa.graph.failure"
)

// SpanGraphExecute is the span name for one statement execution.
const SpanGraphExecute = "graphqa.graph.execute"

// ResultAttributes creates span attributes describing res.
func ResultAttributes(res GraphResult) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrGraphQuery, res.Query),
		attribute.Int(AttrGraphRowCount, len(res.Rows)),
		attribute.Int64(AttrGraphDurationMs, res.Duration.Milliseconds()),
	}
	if res.Err != nil {
		attrs = append(attrs, attribute.String(AttrGraphFailure, string(res.FailureCode())))
	}
	return attrs
}

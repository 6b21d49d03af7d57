// Package observability wires tracing, logging, metrics, and Langfuse
// ingestion for graphqa.
//
// Every pipeline stage runs inside an OpenTelemetry span. Generation calls go
// through TracedCompleter, which records gen_ai.* attributes on a client span
// so the Langfuse exporter turns them into generations. Logs carry trace_id
// and span_id from the active span through TracedHandler, and quality scores
// and user feedback are attached to the same trace ids through LangfuseClient.
//
// Metrics are OTel instruments exported in Prometheus format from a private
// registry served at /metrics.
package observability

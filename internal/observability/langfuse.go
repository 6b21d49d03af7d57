package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/graphqa/internal/types"
	"github.com/zero-day-ai/graphqa/pkg/version"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryDelay    = 1 * time.Second
	defaultHTTPTimeout   = 30 * time.Second
	langfuseAPIPath      = "/api/public/ingestion"
)

// LangfuseOption is a functional option for configuring Langfuse clients.
type LangfuseOption func(*langfuseOptions)

type langfuseOptions struct {
	batchSize     int
	flushInterval time.Duration
	maxRetries    int
	retryDelay    time.Duration
	httpClient    *http.Client
}

// WithBatchSize sets the maximum number of spans to buffer before flushing.
func WithBatchSize(size int) LangfuseOption {
	return func(o *langfuseOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithFlushInterval sets the maximum time between automatic flushes.
func WithFlushInterval(interval time.Duration) LangfuseOption {
	return func(o *langfuseOptions) {
		if interval > 0 {
			o.flushInterval = interval
		}
	}
}

// WithRetryPolicy sets the retry behavior for failed HTTP requests.
// Requests are retried up to maxRetries times with exponential backoff.
func WithRetryPolicy(maxRetries int, retryDelay time.Duration) LangfuseOption {
	return func(o *langfuseOptions) {
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
		if retryDelay > 0 {
			o.retryDelay = retryDelay
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) LangfuseOption {
	return func(o *langfuseOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func newLangfuseOptions(opts []LangfuseOption) *langfuseOptions {
	options := &langfuseOptions{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		maxRetries:    defaultMaxRetries,
		retryDelay:    defaultRetryDelay,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// ingestionEvent is one entry of the Langfuse ingestion batch.
type ingestionEvent struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

func newEvent(kind string, at time.Time, body map[string]any) ingestionEvent {
	return ingestionEvent{
		Type:      kind,
		ID:        uuid.NewString(),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Body:      body,
	}
}

// ingestion posts event batches to the Langfuse ingestion API.
type ingestion struct {
	client     *http.Client
	url        string
	publicKey  string
	secretKey  string
	maxRetries int
	retryDelay time.Duration
}

func newIngestion(cfg LangfuseConfig, o *langfuseOptions) *ingestion {
	return &ingestion{
		client:     o.httpClient,
		url:        strings.TrimRight(cfg.Host, "/") + langfuseAPIPath,
		publicKey:  cfg.PublicKey,
		secretKey:  cfg.SecretKey,
		maxRetries: o.maxRetries,
		retryDelay: o.retryDelay,
	}
}

func (in *ingestion) send(ctx context.Context, events []ingestionEvent) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"batch": events})
	if err != nil {
		return types.WrapError(ErrExporterConnection, "failed to marshal ingestion batch", err)
	}
	return in.sendWithRetry(ctx, payload)
}

// sendWithRetry sends a payload to Langfuse with exponential backoff retry.
func (in *ingestion) sendWithRetry(ctx context.Context, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= in.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * in.retryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return types.WrapError(ErrExporterConnection, "context cancelled during retry", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.url, bytes.NewReader(payload))
		if err != nil {
			return types.WrapError(ErrExporterConnection, "failed to build ingestion request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		req.SetBasicAuth(in.publicKey, in.secretKey)

		resp, err := in.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return types.WrapError(ErrExporterConnection, "ingestion request cancelled", ctx.Err())
			}
			lastErr = err
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return NewAuthenticationError("langfuse", fmt.Errorf("HTTP %d", resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP %d: retryable error", resp.StatusCode)
			continue
		default:
			return NewExporterConnectionError(in.url, fmt.Errorf("HTTP %d: non-retryable error", resp.StatusCode))
		}
	}

	return NewExporterConnectionError(in.url, fmt.Errorf("max retries exceeded: %w", lastErr))
}

// LangfuseExporter exports OpenTelemetry spans to Langfuse. Client spans
// (generation calls) become generations, everything else becomes spans.
// It implements sdktrace.SpanExporter.
type LangfuseExporter struct {
	ingestion     *ingestion
	buffer        []sdktrace.ReadOnlySpan
	bufferMu      sync.Mutex
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

var _ sdktrace.SpanExporter = (*LangfuseExporter)(nil)

// NewLangfuseExporter creates an exporter and starts its background flusher.
func NewLangfuseExporter(cfg LangfuseConfig, opts ...LangfuseOption) (*LangfuseExporter, error) {
	if err := validateLangfuseCredentials(cfg); err != nil {
		return nil, err
	}
	options := newLangfuseOptions(opts)

	exporter := &LangfuseExporter{
		ingestion:     newIngestion(cfg, options),
		buffer:        make([]sdktrace.ReadOnlySpan, 0, options.batchSize),
		batchSize:     options.batchSize,
		flushInterval: options.flushInterval,
		stopCh:        make(chan struct{}),
	}

	exporter.wg.Add(1)
	go exporter.backgroundFlusher()

	return exporter, nil
}

func validateLangfuseCredentials(cfg LangfuseConfig) error {
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return types.WrapError(ErrAuthenticationFailed, "invalid langfuse configuration", err)
	}
	return nil
}

// ExportSpans buffers spans and flushes when the batch is full.
func (e *LangfuseExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.bufferMu.Lock()
	defer e.bufferMu.Unlock()

	e.buffer = append(e.buffer, spans...)
	if len(e.buffer) >= e.batchSize {
		return e.flush(ctx)
	}
	return nil
}

// Shutdown stops the background flusher and flushes remaining spans.
func (e *LangfuseExporter) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	doneCh := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-ctx.Done():
		return types.WrapError(ErrShutdownTimeout, "timeout waiting for background flusher", ctx.Err())
	}

	e.bufferMu.Lock()
	defer e.bufferMu.Unlock()

	if err := e.flush(ctx); err != nil {
		return types.WrapError(ErrShutdownTimeout, "failed to flush remaining spans", err)
	}
	return nil
}

func (e *LangfuseExporter) backgroundFlusher() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.bufferMu.Lock()
			_ = e.flush(context.Background())
			e.bufferMu.Unlock()

		case <-e.stopCh:
			return
		}
	}
}

// flush must be called with bufferMu held.
func (e *LangfuseExporter) flush(ctx context.Context) error {
	if len(e.buffer) == 0 {
		return nil
	}
	if err := e.ingestion.send(ctx, convertSpans(e.buffer)); err != nil {
		return err
	}
	e.buffer = e.buffer[:0]
	return nil
}

// convertSpans maps spans to ingestion events. A trace-create event is
// emitted for each root span so the trace is named after the request.
func convertSpans(spans []sdktrace.ReadOnlySpan) []ingestionEvent {
	events := make([]ingestionEvent, 0, len(spans)+1)

	for _, span := range spans {
		sc := span.SpanContext()
		traceID := sc.TraceID().String()

		metadata := make(map[string]any, len(span.Attributes()))
		for _, attr := range span.Attributes() {
			metadata[string(attr.Key)] = attr.Value.AsInterface()
		}

		if !span.Parent().IsValid() {
			events = append(events, newEvent("trace-create", span.StartTime(), map[string]any{
				"id":        traceID,
				"name":      span.Name(),
				"timestamp": span.StartTime().UTC().Format(time.RFC3339Nano),
				"metadata":  metadata,
			}))
		}

		body := map[string]any{
			"id":        sc.SpanID().String(),
			"traceId":   traceID,
			"name":      span.Name(),
			"startTime": span.StartTime().UTC().Format(time.RFC3339Nano),
			"endTime":   span.EndTime().UTC().Format(time.RFC3339Nano),
			"metadata":  metadata,
			"level":     statusCodeToLevel(span.Status().Code),
		}
		if span.Parent().IsValid() {
			body["parentObservationId"] = span.Parent().SpanID().String()
		}
		if desc := span.Status().Description; desc != "" {
			body["statusMessage"] = desc
		}

		kind := "span-create"
		if span.SpanKind() == trace.SpanKindClient {
			kind = "generation-create"
			if model, ok := metadata[GenAIResponseModel]; ok {
				body["model"] = model
			}
			usage := map[string]any{}
			if v, ok := metadata[GenAIUsageInputTokens]; ok {
				usage["input"] = v
			}
			if v, ok := metadata[GenAIUsageOutputTokens]; ok {
				usage["output"] = v
			}
			if len(usage) > 0 {
				body["usage"] = usage
			}
			if v, ok := metadata[GenAIPrompt]; ok {
				body["input"] = v
			}
			if v, ok := metadata[GenAICompletion]; ok {
				body["output"] = v
			}
		}

		events = append(events, newEvent(kind, span.StartTime(), body))
	}

	return events
}

func statusCodeToLevel(code codes.Code) string {
	if code == codes.Error {
		return "ERROR"
	}
	return "DEFAULT"
}

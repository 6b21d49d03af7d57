package observability

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type ingestServer struct {
	*httptest.Server
	mu      sync.Mutex
	batches [][]ingestionEvent
	status  atomic.Int32
	calls   atomic.Int32
}

func newIngestServer(t *testing.T) *ingestServer {
	t.Helper()
	s := &ingestServer{}
	s.status.Store(http.StatusMultiStatus)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "pk" || pass != "sk" || r.URL.Path != langfuseAPIPath {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Batch []ingestionEvent `json:"batch"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.batches = append(s.batches, payload.Batch)
		s.mu.Unlock()
		w.WriteHeader(int(s.status.Load()))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *ingestServer) events() []ingestionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ingestionEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *ingestServer) config() LangfuseConfig {
	return LangfuseConfig{Enabled: true, PublicKey: "pk", SecretKey: "sk", Host: s.URL + "/"}
}

func TestLangfuseClient_Scores(t *testing.T) {
	srv := newIngestServer(t)
	client, err := NewLangfuseClient(srv.config())
	require.NoError(t, err)

	err = client.Scores(context.Background(), []Score{
		{TraceID: "t1", Name: "answer_relevance", Value: 0.75, Comment: "on topic"},
		{TraceID: "t1", ObservationID: "s1", Name: "user_feedback", Value: 1, Source: "ANNOTATION"},
	})
	require.NoError(t, err)

	events := srv.events()
	require.Len(t, events, 2)
	assert.Equal(t, "score-create", events[0].Type)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "t1", events[0].Body["traceId"])
	assert.Equal(t, 0.75, events[0].Body["value"])
	assert.Equal(t, "NUMERIC", events[0].Body["dataType"])
	assert.Equal(t, "on topic", events[0].Body["comment"])
	assert.Equal(t, "s1", events[1].Body["observationId"])
	assert.Equal(t, "ANNOTATION", events[1].Body["source"])
}

func TestLangfuseClient_InvalidScoreSendsNothing(t *testing.T) {
	srv := newIngestServer(t)
	client, err := NewLangfuseClient(srv.config())
	require.NoError(t, err)

	tests := []Score{
		{Name: "x", Value: 1},
		{TraceID: "t", Value: 1},
		{TraceID: "t", Name: "x", Value: math.NaN()},
		{TraceID: "t", Name: "x", Value: math.Inf(1)},
	}
	for _, s := range tests {
		assert.Error(t, client.Score(context.Background(), s))
	}
	assert.Zero(t, srv.calls.Load())
}

func TestLangfuseClient_Retries(t *testing.T) {
	srv := newIngestServer(t)
	srv.status.Store(http.StatusServiceUnavailable)

	client, err := NewLangfuseClient(srv.config(), WithRetryPolicy(2, time.Millisecond))
	require.NoError(t, err)

	err = client.Score(context.Background(), Score{TraceID: "t", Name: "x", Value: 1})
	require.Error(t, err)
	assert.Equal(t, int32(3), srv.calls.Load())
}

func TestLangfuseClient_AuthFailureNotRetried(t *testing.T) {
	srv := newIngestServer(t)
	cfg := srv.config()
	cfg.SecretKey = "wrong"

	client, err := NewLangfuseClient(cfg, WithRetryPolicy(3, time.Millisecond))
	require.NoError(t, err)

	err = client.Score(context.Background(), Score{TraceID: "t", Name: "x", Value: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestNewLangfuseClient_MissingKeys(t *testing.T) {
	_, err := NewLangfuseClient(LangfuseConfig{Host: "http://localhost"})
	assert.Error(t, err)
}

func TestLangfuseExporter_ConvertsSpans(t *testing.T) {
	srv := newIngestServer(t)
	exp, err := NewLangfuseExporter(srv.config(), WithFlushInterval(time.Hour))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	tracer := tp.Tracer("test")

	ctx, root := tracer.Start(context.Background(), "graphqa.query")
	_, gen := tracer.Start(ctx, "gen_ai.chat answer",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(GenAIResponseModel, "gpt-4o"),
			attribute.Int(GenAIUsageInputTokens, 42),
			attribute.Int(GenAIUsageOutputTokens, 7),
		),
	)
	gen.End()
	root.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	events := srv.events()
	require.Len(t, events, 3)

	kinds := map[string]ingestionEvent{}
	for _, e := range events {
		kinds[e.Type] = e
	}
	require.Contains(t, kinds, "trace-create")
	require.Contains(t, kinds, "generation-create")
	require.Contains(t, kinds, "span-create")

	traceID := root.SpanContext().TraceID().String()
	assert.Equal(t, traceID, kinds["trace-create"].Body["id"])
	assert.Equal(t, "graphqa.query", kinds["trace-create"].Body["name"])

	g := kinds["generation-create"].Body
	assert.Equal(t, "gpt-4o", g["model"])
	assert.Equal(t, root.SpanContext().SpanID().String(), g["parentObservationId"])
	assert.Equal(t, map[string]any{"input": float64(42), "output": float64(7)}, g["usage"])
}

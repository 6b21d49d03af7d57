package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Span and attribute names for hybrid retrieval.
const (
	SpanRetrieve = "graphqa.retrieval.hybrid"

	AttrRetrievalVectorHits  = "graphqa.retrieval.vector_hits"
	AttrRetrievalKeywordHits = "graphqa.retrieval.keyword_hits"
	AttrRetrievalPassages    = "graphqa.retrieval.passages"
	AttrRetrievalFusion      = "graphqa.retrieval.fusion"
)

// Config controls hybrid retrieval.
type Config struct {
	// TopK is the number of fused passages returned.
	TopK int `mapstructure:"top_k" yaml:"top_k" validate:"min=1"`

	// CandidateK is how many hits each search mode contributes to fusion.
	CandidateK int `mapstructure:"candidate_k" yaml:"candidate_k" validate:"min=1"`

	// Fusion selects the merge policy.
	Fusion FusionConfig `mapstructure:"fusion" yaml:"fusion"`

	// SkipWithoutEntities disables the text path when entity extraction
	// returned nothing, instead of searching with the raw question.
	SkipWithoutEntities bool `mapstructure:"skip_without_entities" yaml:"skip_without_entities"`
}

// DefaultConfig returns the retrieval defaults: two passages fused by RRF.
func DefaultConfig() Config {
	return Config{
		TopK:       2,
		CandidateK: 20,
		Fusion:     DefaultFusionConfig(),
	}
}

// Validate checks the retrieval settings.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return types.NewError(ErrCodeInvalidConfig, fmt.Sprintf("top_k must be positive, got %d", c.TopK))
	}
	if c.CandidateK < c.TopK {
		return types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("candidate_k (%d) must be at least top_k (%d)", c.CandidateK, c.TopK))
	}
	return c.Fusion.Validate()
}

// HybridRetriever searches the note index by vector similarity and by
// keywords concurrently and fuses the two rankings.
type HybridRetriever struct {
	store    NoteStore
	embedder embedder.Embedder
	config   Config
	tracer   trace.Tracer
	logger   *slog.Logger
}

// RetrieverOption configures optional HybridRetriever behaviour.
type RetrieverOption func(*HybridRetriever)

// WithTracer sets the tracer used for retrieval spans.
func WithTracer(tracer trace.Tracer) RetrieverOption {
	return func(r *HybridRetriever) {
		r.tracer = tracer
	}
}

// WithLogger sets the retriever logger.
func WithLogger(logger *slog.Logger) RetrieverOption {
	return func(r *HybridRetriever) {
		r.logger = logger
	}
}

// NewHybridRetriever creates a retriever over store using emb for query vectors.
func NewHybridRetriever(store NoteStore, emb embedder.Embedder, cfg Config, opts ...RetrieverOption) (*HybridRetriever, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &HybridRetriever{
		store:    store,
		embedder: emb,
		config:   cfg,
		tracer:   noop.NewTracerProvider().Tracer("graphqa.retrieval"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the retriever settings.
func (r *HybridRetriever) Config() Config {
	return r.config
}

// Retrieve returns the top passages for query. An empty query or an empty
// index yields an empty list and no error. Errors mean the index or the
// embedding backend could not be used.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) ([]TextPassage, error) {
	ctx, span := r.tracer.Start(ctx, SpanRetrieve)
	defer span.End()
	span.SetAttributes(attribute.String(AttrRetrievalFusion, r.config.Fusion.Method))

	if strings.TrimSpace(query) == "" {
		span.SetAttributes(attribute.Int(AttrRetrievalPassages, 0))
		return []TextPassage{}, nil
	}

	var vectorHits, keywordHits []Hit
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return err
		}
		vectorHits, err = r.store.VectorSearch(gctx, vec, r.config.CandidateK)
		return err
	})
	g.Go(func() error {
		var err error
		keywordHits, err = r.store.KeywordSearch(gctx, query, r.config.CandidateK)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	passages := Fuse(r.config.Fusion, vectorHits, keywordHits, r.config.TopK)

	span.SetAttributes(
		attribute.Int(AttrRetrievalVectorHits, len(vectorHits)),
		attribute.Int(AttrRetrievalKeywordHits, len(keywordHits)),
		attribute.Int(AttrRetrievalPassages, len(passages)),
	)
	r.logger.DebugContext(ctx, "hybrid retrieval complete",
		"vector_hits", len(vectorHits),
		"keyword_hits", len(keywordHits),
		"passages", len(passages))

	return passages, nil
}

// Health combines index and embedder health.
func (r *HybridRetriever) Health(ctx context.Context) types.HealthStatus {
	store := r.store.Health(ctx)
	if store.IsUnhealthy() {
		return store
	}
	emb := r.embedder.Health(ctx)
	if !emb.IsHealthy() {
		return types.Degraded(fmt.Sprintf("embedder: %s", emb.Message))
	}
	return store
}

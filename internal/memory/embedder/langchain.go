package embedder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// LangchainEmbedder adapts a langchaingo embeddings client (Ollama, OpenAI)
// to the Embedder interface. Vectors are widened to float64 so callers can
// compute similarity without losing precision across the store boundary.
type LangchainEmbedder struct {
	impl  embeddings.Embedder
	model string

	mu         sync.RWMutex
	dimensions int
	fixedDims  bool
}

// NewLangchainEmbedder wraps client. When dimensions is positive every
// returned vector must have exactly that length.
func NewLangchainEmbedder(client embeddings.EmbedderClient, model string, batchSize, dimensions int) (*LangchainEmbedder, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}

	impl, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbedderUnavailable, "failed to create embedder", err)
	}

	return &LangchainEmbedder{
		impl:       impl,
		model:      model,
		dimensions: dimensions,
		fixedDims:  dimensions > 0,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingFailed, "embedding request failed", err)
	}

	out := widen(vec)
	if err := e.checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	vecs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingBatchFailed,
			fmt.Sprintf("batch embedding of %d texts failed", len(texts)), err)
	}
	if len(vecs) != len(texts) {
		return nil, types.NewError(ErrCodeEmbeddingBatchFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vecs)))
	}

	out := make([][]float64, len(vecs))
	for i, vec := range vecs {
		out[i] = widen(vec)
		if err := e.checkDimensions(out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Dimensions returns the configured dimension or the one observed on the first call.
func (e *LangchainEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the embedding model name.
func (e *LangchainEmbedder) Model() string {
	return e.model
}

// Health embeds a short fixed string.
func (e *LangchainEmbedder) Health(ctx context.Context) types.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := e.Embed(ctx, "health"); err != nil {
		return types.Unhealthy(fmt.Sprintf("embedder %s: %v", e.model, err))
	}
	return types.Healthy(fmt.Sprintf("embedder %s (%d dims)", e.model, e.Dimensions()))
}

func (e *LangchainEmbedder) checkDimensions(vec []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dimensions == 0 {
		e.dimensions = len(vec)
		return nil
	}
	if len(vec) != e.dimensions {
		if !e.fixedDims {
			e.dimensions = len(vec)
			return nil
		}
		return types.NewError(ErrCodeDimensionMismatch,
			fmt.Sprintf("model %s returned %d dimensions, expected %d", e.model, len(vec), e.dimensions))
	}
	return nil
}

func widen(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

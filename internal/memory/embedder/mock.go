package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/zero-day-ai/graphqa/internal/types"
)

const defaultMockDimensions = 64

// MockEmbedder is a deterministic Embedder for tests and offline runs.
//
// Each lower-cased word of the text is hashed to a seeded random direction and
// the word vectors are summed, so texts sharing words land close together. This
// keeps vector-search tests meaningful without a model server.
type MockEmbedder struct {
	mu           sync.RWMutex
	dimensions   int
	model        string
	embedCalls   int
	batchCalls   int
	embedError   error
	healthStatus types.HealthStatus
}

// NewMockEmbedder creates a new mock embedder for testing.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		dimensions:   defaultMockDimensions,
		model:        "mock-embedder",
		healthStatus: types.Healthy("mock embedder"),
	}
}

// Embed generates a deterministic embedding for a single text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	m.embedCalls++
	err, dims := m.embedError, m.dimensions
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return bagOfWords(text, dims), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	m.batchCalls++
	err, dims := m.embedError, m.dimensions
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = bagOfWords(text, dims)
	}
	return out, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
func (m *MockEmbedder) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Model returns the name of the mock embedding model.
func (m *MockEmbedder) Model() string {
	return m.model
}

// Health returns the configured health status.
func (m *MockEmbedder) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthStatus
}

// SetDimensions allows changing the embedding dimensions for testing.
func (m *MockEmbedder) SetDimensions(dims int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dims
}

// SetEmbedError makes Embed and EmbedBatch fail with err.
func (m *MockEmbedder) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
}

// SetHealthStatus configures what Health() should return.
func (m *MockEmbedder) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// Calls returns how many Embed and EmbedBatch calls were made.
func (m *MockEmbedder) Calls() (embed, batch int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embedCalls, m.batchCalls
}

func bagOfWords(text string, dims int) []float64 {
	vec := make([]float64, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?'\"()")
		if word == "" {
			continue
		}
		hash := sha256.Sum256([]byte(word))
		rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(hash[:8]))))
		for i := range vec {
			vec[i] += rng.Float64()*2 - 1
		}
	}
	return normalizeVector(vec)
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float64) []float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}

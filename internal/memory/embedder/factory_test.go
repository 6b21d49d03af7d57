package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestCreateEmbedder_Mock(t *testing.T) {
	emb, err := CreateEmbedder(EmbedderConfig{Provider: "mock", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, emb.Dimensions())
	assert.Equal(t, "mock-embedder", emb.Model())
}

func TestCreateEmbedder_Ollama(t *testing.T) {
	emb, err := CreateEmbedder(DefaultEmbedderConfig())
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", emb.Model())
	assert.Equal(t, 0, emb.Dimensions())
}

func TestValidateEmbedderConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name    string
		config  EmbedderConfig
		wantErr string
	}{
		{name: "default", config: DefaultEmbedderConfig()},
		{name: "mock", config: EmbedderConfig{Provider: "mock"}},
		{name: "openai", config: EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small", APIKey: "sk-test"}},
		{name: "empty provider", config: EmbedderConfig{}, wantErr: "provider cannot be empty"},
		{name: "unknown provider", config: EmbedderConfig{Provider: "native"}, wantErr: "unknown embedder provider"},
		{name: "ollama without model", config: EmbedderConfig{Provider: "ollama"}, wantErr: "requires model"},
		{name: "openai without key", config: EmbedderConfig{Provider: "openai", Model: "m"}, wantErr: "api_key"},
		{name: "negative batch", config: EmbedderConfig{Provider: "mock", BatchSize: -1}, wantErr: "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbedderConfig(tt.config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ErrCodeInvalidConfig, types.CodeOf(err))
		})
	}
}

type fakeClient struct {
	dims  int
	calls int
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func TestLangchainEmbedder(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{dims: 4}

	e, err := NewLangchainEmbedder(client, "fake", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Dimensions())

	vec, err := e.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 0, 0}, vec)
	assert.Equal(t, 4, e.Dimensions())

	batch, err := e.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, 2.0, batch[1][0])

	empty, err := e.EmbedBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.True(t, e.Health(ctx).IsHealthy())
}

func TestLangchainEmbedder_FixedDimensionMismatch(t *testing.T) {
	e, err := NewLangchainEmbedder(&fakeClient{dims: 4}, "fake", 0, 8)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "abc")
	assert.Equal(t, ErrCodeDimensionMismatch, types.CodeOf(err))
}

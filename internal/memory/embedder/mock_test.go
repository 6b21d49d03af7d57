package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder()

	a, err := e.Embed(ctx, "Patient is allergic to seafood")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Patient is allergic to seafood")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, defaultMockDimensions)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-9)
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder()

	query, _ := e.Embed(ctx, "seafood allergy")
	near, _ := e.Embed(ctx, "severe seafood allergy reported")
	far, _ := e.Embed(ctx, "routine immunization completed in spring")

	assert.Greater(t, cosine(query, near), cosine(query, far))
}

func TestMockEmbedder_EmbedBatchMatchesEmbed(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder()
	e.SetDimensions(16)

	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
		assert.Len(t, single, 16)
	}

	embed, batchCalls := e.Calls()
	assert.Equal(t, 3, embed)
	assert.Equal(t, 1, batchCalls)
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	vec, err := NewMockEmbedder().Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestMockEmbedder_ErrorsAndHealth(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder()
	assert.True(t, e.Health(ctx).IsHealthy())

	boom := types.NewError(ErrCodeEmbeddingFailed, "boom")
	e.SetEmbedError(boom)
	_, err := e.Embed(ctx, "x")
	assert.ErrorIs(t, err, boom)
	_, err = e.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, boom)

	e.SetHealthStatus(types.Unhealthy("down"))
	assert.True(t, e.Health(ctx).IsUnhealthy())
}

package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphqa/internal/database"
	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
)

var testNotes = []Note{
	{RecordID: 1, Prefix: "Mr.", Surname: "Rosenbaum", GivenName: "Adam", Text: "Mr. Adam Rosenbaum received the influenza vaccine in 2022."},
	{RecordID: 2, Prefix: "Ms.", Surname: "Bañuelos", GivenName: "Sonia María", Text: "Ms. Sonia María Bañuelos is allergic to shellfish and lives in Boston."},
	{RecordID: 3, Prefix: "Mrs.", Surname: "Klein", GivenName: "Eva", Text: "Mrs. Eva Klein has a peanut allergy and was treated by Josef Klein."},
}

func newTestStore(t *testing.T) *SQLiteNoteStore {
	t.Helper()
	store, err := OpenSQLiteNoteStore(context.Background(), database.DefaultConfig(database.MemoryPath))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStore(t *testing.T, store *SQLiteNoteStore, emb embedder.Embedder) {
	t.Helper()
	texts := make([]string, len(testNotes))
	for i, n := range testNotes {
		texts[i] = n.Text
	}
	vecs, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), testNotes, vecs, emb.Model()))
}

func TestSQLiteNoteStore_Upsert(t *testing.T) {
	store := newTestStore(t)
	emb := embedder.NewMockEmbedder()
	seedStore(t, store, emb)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	meta, err := store.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock-embedder", meta[MetaEmbeddingModel])
	assert.Equal(t, "64", meta[MetaEmbeddingDimensions])

	// Re-indexing replaces the note and keeps the FTS table in sync.
	updated := testNotes[0]
	updated.Text = "Mr. Adam Rosenbaum declined the tetanus booster."
	require.NoError(t, store.Upsert(context.Background(), []Note{updated}, nil, ""))

	hits, err := store.KeywordSearch(context.Background(), "influenza", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.KeywordSearch(context.Background(), "tetanus", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].ID)

	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteNoteStore_UpsertValidation(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), []Note{{RecordID: 0, Text: "x"}}, nil, "")
	require.Error(t, err)

	err = store.Upsert(context.Background(), testNotes, [][]float64{{1}}, "m")
	require.Error(t, err)
}

func TestSQLiteNoteStore_KeywordSearch(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store, embedder.NewMockEmbedder())

	hits, err := store.KeywordSearch(context.Background(), "shellfish boston", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(2), hits[0].ID)

	// Diacritics are folded by the tokenizer.
	hits, err = store.KeywordSearch(context.Background(), "banuelos", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ID)

	// FTS operators in user text are quoted, not parsed.
	hits, err = store.KeywordSearch(context.Background(), `klein" OR NOT (`, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(3), hits[0].ID)

	hits, err = store.KeywordSearch(context.Background(), "?!", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteNoteStore_VectorSearch(t *testing.T) {
	store := newTestStore(t)
	emb := embedder.NewMockEmbedder()
	seedStore(t, store, emb)

	q, err := emb.Embed(context.Background(), testNotes[1].Text)
	require.NoError(t, err)

	hits, err := store.VectorSearch(context.Background(), q, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	// Vectors from a model with another dimension are ignored.
	hits, err = store.VectorSearch(context.Background(), []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteNoteStore_EmptyIndex(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.KeywordSearch(context.Background(), "influenza", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.VectorSearch(context.Background(), []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.True(t, store.Health(context.Background()).IsDegraded())
}

func TestVectorEncoding(t *testing.T) {
	v := []float64{0.5, -1.25, 3}
	got, err := decodeVector(encodeVector(v), 3)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3}, 1)
	require.Error(t, err)

	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
	assert.Zero(t, cosineSimilarity(v, []float64{1}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

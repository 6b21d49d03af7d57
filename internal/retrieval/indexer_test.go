package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestParseNotes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr types.ErrorCode
	}{
		{
			name:  "json array",
			input: `[{"record_id": 1, "surname": "Klein", "note": "peanut allergy"}, {"record_id": 2, "note": "flu shot"}]`,
			want:  2,
		},
		{
			name:  "json lines",
			input: "{\"record_id\": 1, \"note\": \"a\"}\n{\"record_id\": 2, \"note\": \"b\"}\n",
			want:  2,
		},
		{
			name:    "missing text",
			input:   `[{"record_id": 1, "note": "  "}]`,
			wantErr: ErrCodeInvalidNote,
		},
		{
			name:    "non-positive id",
			input:   `[{"record_id": 0, "note": "x"}]`,
			wantErr: ErrCodeInvalidNote,
		},
		{
			name:    "malformed",
			input:   `[{"record_id": 1,`,
			wantErr: ErrCodeInvalidNote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := ParseNotes([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, types.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, notes, tt.want)
		})
	}
}

func TestLoadNotes_MissingFile(t *testing.T) {
	_, err := LoadNotes(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeIndexFailed, types.CodeOf(err))
}

func TestLoadNotes_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"record_id": 7, "prefix": "Mr.", "surname": "Rosenbaum", "given_name": "Adam", "note": "vaccinated"}]`), 0o600))

	notes, err := LoadNotes(path)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(7), notes[0].RecordID)
	assert.Equal(t, "Rosenbaum", notes[0].Surname)
	assert.Equal(t, "vaccinated", notes[0].Text)
}

func TestIndexer_Index(t *testing.T) {
	store := newTestStore(t)
	emb := embedder.NewMockEmbedder()

	var progress [][2]int
	ix := NewIndexer(store, emb, 2, nil)
	stats, err := ix.Index(context.Background(), testNotes, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Notes)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, emb.Dimensions(), stats.Dimensions)
	assert.Equal(t, "mock-embedder", stats.Model)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, batches := emb.Calls()
	assert.Equal(t, 2, batches)
}

func TestIndexer_EmbedFailure(t *testing.T) {
	store := newTestStore(t)
	emb := embedder.NewMockEmbedder()
	emb.SetEmbedError(errors.New("model offline"))

	stats, err := NewIndexer(store, emb, 0, nil).Index(context.Background(), testNotes, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeIndexFailed, types.CodeOf(err))
	assert.Zero(t, stats.Notes)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexer_Cancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(store, embedder.NewMockEmbedder(), 1, nil).Index(ctx, testNotes, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

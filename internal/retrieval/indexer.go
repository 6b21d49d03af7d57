package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zero-day-ai/graphqa/internal/memory/embedder"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// LoadNotes reads notes from a JSON array or a JSON-lines file.
func LoadNotes(path string) ([]Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(ErrCodeIndexFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	return ParseNotes(data)
}

// ParseNotes decodes notes from a JSON array or JSON lines and validates them.
func ParseNotes(data []byte) ([]Note, error) {
	data = bytes.TrimSpace(data)
	var notes []Note

	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &notes); err != nil {
			return nil, types.WrapError(ErrCodeInvalidNote, "failed to decode notes", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var n Note
			if err := dec.Decode(&n); err != nil {
				return nil, types.WrapError(ErrCodeInvalidNote,
					fmt.Sprintf("failed to decode note %d", len(notes)+1), err)
			}
			notes = append(notes, n)
		}
	}

	for _, n := range notes {
		if err := n.Validate(); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

// IndexStats summarises an indexing run.
type IndexStats struct {
	Notes      int
	Batches    int
	Dimensions int
	Model      string
	Duration   time.Duration
}

// Indexer embeds notes and writes them to a NoteStore.
type Indexer struct {
	store     NoteStore
	embedder  embedder.Embedder
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an indexer. batchSize <= 0 uses 32.
func NewIndexer(store NoteStore, emb embedder.Embedder, batchSize int, logger *slog.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, embedder: emb, batchSize: batchSize, logger: logger}
}

// Index embeds and stores notes batch by batch. progress, when non-nil, is
// called after each batch with the number of notes written so far.
func (ix *Indexer) Index(ctx context.Context, notes []Note, progress func(done, total int)) (IndexStats, error) {
	start := time.Now()
	stats := IndexStats{Model: ix.embedder.Model()}

	for begin := 0; begin < len(notes); begin += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(begin+ix.batchSize, len(notes))
		batch := notes[begin:end]

		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = n.Text
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stats, types.WrapError(ErrCodeIndexFailed,
				fmt.Sprintf("failed to embed notes %d-%d", begin+1, end), err)
		}
		if err := ix.store.Upsert(ctx, batch, vectors, ix.embedder.Model()); err != nil {
			return stats, err
		}

		stats.Notes += len(batch)
		stats.Batches++
		if len(vectors) > 0 {
			stats.Dimensions = len(vectors[0])
		}
		ix.logger.DebugContext(ctx, "indexed note batch", "batch", stats.Batches, "notes", stats.Notes)
		if progress != nil {
			progress(stats.Notes, len(notes))
		}
	}

	stats.Duration = time.Since(start)
	ix.logger.InfoContext(ctx, "note indexing complete",
		"notes", stats.Notes,
		"batches", stats.Batches,
		"model", stats.Model,
		"dimensions", stats.Dimensions,
		"duration", stats.Duration)
	return stats, nil
}

package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/zero-day-ai/graphqa/internal/database"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// NoteStore is the note index the hybrid retriever searches.
// Implementations must be safe for concurrent readers.
type NoteStore interface {
	// Upsert writes notes and, when vectors is non-nil, one embedding per
	// note produced by model. Existing records are replaced.
	Upsert(ctx context.Context, notes []Note, vectors [][]float64, model string) error

	// KeywordSearch runs a full-text query and returns at most limit hits.
	KeywordSearch(ctx context.Context, text string, limit int) ([]Hit, error)

	// VectorSearch returns at most limit notes closest to vec.
	VectorSearch(ctx context.Context, vec []float64, limit int) ([]Hit, error)

	// Count returns the number of indexed notes.
	Count(ctx context.Context) (int, error)

	// Health reports whether the index is usable.
	Health(ctx context.Context) types.HealthStatus
}

// Metadata keys written next to the embeddings.
const (
	MetaEmbeddingModel      = "embedding_model"
	MetaEmbeddingDimensions = "embedding_dimensions"
)

// SQLiteNoteStore keeps notes in sqlite with an FTS5 shadow table and
// embeddings stored as float32 blobs. Vector search is a brute-force cosine
// scan, which is adequate for the note counts this index holds.
type SQLiteNoteStore struct {
	db *database.DB
}

// NewSQLiteNoteStore wraps an open database whose schema is already migrated.
func NewSQLiteNoteStore(db *database.DB) *SQLiteNoteStore {
	return &SQLiteNoteStore{db: db}
}

// OpenSQLiteNoteStore opens the database at path and migrates it.
func OpenSQLiteNoteStore(ctx context.Context, cfg database.Config) (*SQLiteNoteStore, error) {
	db, err := database.OpenWithConfig(cfg)
	if err != nil {
		return nil, types.WrapError(ErrCodeStoreUnavailable, "failed to open note index", err)
	}
	if !cfg.ReadOnly {
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return NewSQLiteNoteStore(db), nil
}

// Close closes the underlying database.
func (s *SQLiteNoteStore) Close() error {
	return s.db.Close()
}

// Upsert writes notes and their embeddings in one transaction.
func (s *SQLiteNoteStore) Upsert(ctx context.Context, notes []Note, vectors [][]float64, model string) error {
	if len(notes) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(notes) {
		return types.NewError(ErrCodeIndexFailed,
			fmt.Sprintf("got %d vectors for %d notes", len(vectors), len(notes)))
	}
	for _, n := range notes {
		if err := n.Validate(); err != nil {
			return err
		}
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		noteStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notes (record_id, prefix, surname, given_name, note, indexed_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(record_id) DO UPDATE SET
				prefix = excluded.prefix,
				surname = excluded.surname,
				given_name = excluded.given_name,
				note = excluded.note,
				indexed_at = excluded.indexed_at`)
		if err != nil {
			return fmt.Errorf("prepare note insert: %w", err)
		}
		defer noteStmt.Close()

		for _, n := range notes {
			if _, err := noteStmt.ExecContext(ctx, n.RecordID, n.Prefix, n.Surname, n.GivenName, n.Text); err != nil {
				return fmt.Errorf("insert note %d: %w", n.RecordID, err)
			}
		}

		if vectors == nil {
			return nil
		}

		vecStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO note_embeddings (record_id, model, dimensions, vector)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare embedding insert: %w", err)
		}
		defer vecStmt.Close()

		for i, n := range notes {
			if _, err := vecStmt.ExecContext(ctx, n.RecordID, model, len(vectors[i]), encodeVector(vectors[i])); err != nil {
				return fmt.Errorf("insert embedding %d: %w", n.RecordID, err)
			}
		}

		meta := map[string]string{
			MetaEmbeddingModel:      model,
			MetaEmbeddingDimensions: fmt.Sprint(len(vectors[0])),
		}
		for k, v := range meta {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO index_metadata (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return fmt.Errorf("write index metadata: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return types.WrapError(ErrCodeIndexFailed, fmt.Sprintf("failed to index %d notes", len(notes)), err)
	}
	return nil
}

// KeywordSearch ranks notes with FTS5 bm25. Text is turned into a quoted OR
// query, so user punctuation never reaches the FTS parser.
func (s *SQLiteNoteStore) KeywordSearch(ctx context.Context, text string, limit int) ([]Hit, error) {
	match := database.MatchQuery(text)
	if match == "" || limit <= 0 {
		return []Hit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.record_id, n.note, bm25(notes_fts) AS bm25_score
		FROM notes_fts
		JOIN notes n ON n.record_id = notes_fts.rowid
		WHERE notes_fts MATCH ?
		ORDER BY bm25_score, n.record_id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed, "keyword search failed", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var h Hit
		var rank float64
		if err := rows.Scan(&h.ID, &h.Text, &rank); err != nil {
			return nil, types.WrapError(ErrCodeSearchFailed, "failed to scan keyword hit", err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed, "error iterating keyword hits", err)
	}
	return hits, nil
}

// VectorSearch scores every stored embedding against vec. Embeddings whose
// dimension differs from vec were written by another model and are skipped.
func (s *SQLiteNoteStore) VectorSearch(ctx context.Context, vec []float64, limit int) ([]Hit, error) {
	if len(vec) == 0 || limit <= 0 {
		return []Hit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.record_id, n.note, e.dimensions, e.vector
		FROM note_embeddings e
		JOIN notes n ON n.record_id = e.record_id
		WHERE e.dimensions = ?`, len(vec))
	if err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed, "vector search failed", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var (
			h    Hit
			dims int
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Text, &dims, &blob); err != nil {
			return nil, types.WrapError(ErrCodeSearchFailed, "failed to scan embedding", err)
		}
		stored, err := decodeVector(blob, dims)
		if err != nil {
			return nil, types.WrapError(ErrCodeSearchFailed, fmt.Sprintf("corrupt embedding for note %d", h.ID), err)
		}
		h.Score = cosineSimilarity(vec, stored)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed, "error iterating embeddings", err)
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count returns the number of indexed notes.
func (s *SQLiteNoteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&n); err != nil {
		return 0, types.WrapError(ErrCodeSearchFailed, "failed to count notes", err)
	}
	return n, nil
}

// Metadata returns the key/value pairs recorded at index time.
func (s *SQLiteNoteStore) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM index_metadata")
	if err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed, "failed to read index metadata", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, types.WrapError(ErrCodeSearchFailed, "failed to scan index metadata", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Optimize merges FTS5 segments after a large indexing run.
func (s *SQLiteNoteStore) Optimize(ctx context.Context) error {
	return database.OptimizeFTS(ctx, s.db)
}

// Health returns the current health status of the note index.
func (s *SQLiteNoteStore) Health(ctx context.Context) types.HealthStatus {
	if err := s.db.Health(ctx); err != nil {
		return types.Unhealthy(fmt.Sprintf("note index: %v", err))
	}
	n, err := s.Count(ctx)
	if err != nil {
		return types.Degraded(fmt.Sprintf("note index: %v", err))
	}
	if n == 0 {
		return types.Degraded("note index is empty")
	}
	return types.Healthy(fmt.Sprintf("%d notes indexed", n))
}

// sortHits orders hits by score descending, then id ascending.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

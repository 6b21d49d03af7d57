package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// notesFTSSchema creates the FTS5 virtual table over notes.note and the
// triggers that keep it in sync with the notes table.
const notesFTSSchema = `
	CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
		note,
		surname,
		given_name,
		content=notes,
		content_rowid=record_id,
		tokenize='unicode61 remove_diacritics 2'
	);

	CREATE TRIGGER IF NOT EXISTS notes_fts_insert
	AFTER INSERT ON notes
	BEGIN
		INSERT INTO notes_fts(rowid, note, surname, given_name)
		VALUES (new.record_id, new.note, new.surname, new.given_name);
	END;

	CREATE TRIGGER IF NOT EXISTS notes_fts_update
	AFTER UPDATE ON notes
	BEGIN
		INSERT INTO notes_fts(notes_fts, rowid, note, surname, given_name)
		VALUES('delete', old.record_id, old.note, old.surname, old.given_name);
		INSERT INTO notes_fts(rowid, note, surname, given_name)
		VALUES (new.record_id, new.note, new.surname, new.given_name);
	END;

	CREATE TRIGGER IF NOT EXISTS notes_fts_delete
	AFTER DELETE ON notes
	BEGIN
		INSERT INTO notes_fts(notes_fts, rowid, note, surname, given_name)
		VALUES('delete', old.record_id, old.note, old.surname, old.given_name);
	END;
	`

const dropNotesFTS = `
	DROP TRIGGER IF EXISTS notes_fts_insert;
	DROP TRIGGER IF EXISTS notes_fts_update;
	DROP TRIGGER IF EXISTS notes_fts_delete;
	DROP TABLE IF EXISTS notes_fts;`

// RebuildFTSIndex completely rebuilds the FTS index from the notes table
// This is useful when the FTS index gets out of sync or corrupted
func RebuildFTSIndex(ctx context.Context, db *DB) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes_fts(notes_fts) VALUES('rebuild')"); err != nil {
			return fmt.Errorf("failed to rebuild FTS index: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes_fts(notes_fts) VALUES('optimize')"); err != nil {
			return fmt.Errorf("failed to optimize FTS index: %w", err)
		}
		return nil
	})
}

// OptimizeFTS optimizes the FTS index for better performance
// This should be called after bulk loads
func OptimizeFTS(ctx context.Context, db *DB) error {
	_, err := db.conn.ExecContext(ctx, "INSERT INTO notes_fts(notes_fts) VALUES('optimize')")
	if err != nil {
		return fmt.Errorf("failed to optimize FTS index: %w", err)
	}
	return nil
}

// MatchQuery turns free text into an FTS5 MATCH expression. Each word is
// quoted so punctuation and FTS operators in user text cannot break the
// query, and the words are OR-ed so partial matches still rank. Returns ""
// when the text has no searchable words.
func MatchQuery(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

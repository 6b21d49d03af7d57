package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var notesSchema string

//go:embed dataset.sql
var datasetSchema string

// Migrator applies the note index schema in numbered steps.
type Migrator interface {
	// Migrate applies every step newer than the recorded version.
	Migrate(ctx context.Context) error

	// CurrentVersion returns the highest applied step, 0 for a new database.
	CurrentVersion(ctx context.Context) (int, error)

	// Rollback undoes steps down to targetVersion.
	Rollback(ctx context.Context, targetVersion int) error

	// GetAppliedMigrations lists applied steps in order.
	GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error)
}

// MigrationInfo describes an applied step.
type MigrationInfo struct {
	Version   int
	Name      string
	AppliedAt string
}

// migration is one schema step. up and down are scripts executed whole;
// the sqlite driver runs every statement in them, triggers included.
type migration struct {
	version int
	name    string
	up      string
	down    string
}

var notesMigrations = []migration{
	{
		version: 1,
		name:    "notes_schema",
		up:      notesSchema,
		down: `
			DROP TABLE IF EXISTS index_metadata;
			DROP TABLE IF EXISTS note_embeddings;
			DROP INDEX IF EXISTS idx_notes_surname;
			DROP TABLE IF EXISTS notes;`,
	},
	{
		version: 2,
		name:    "notes_fts",
		up:      notesFTSSchema,
		down:    dropNotesFTS,
	},
}

var datasetMigrations = []migration{
	{
		version: 1,
		name:    "optimization_dataset",
		up:      datasetSchema,
		down: `
			DROP TABLE IF EXISTS dataset_scores;
			DROP INDEX IF EXISTS idx_dataset_items_dataset;
			DROP TABLE IF EXISTS dataset_items;`,
	},
}

type migrator struct {
	db    *DB
	steps []migration
}

// NewMigrator creates a migrator for the note index schema.
func NewMigrator(db *DB) Migrator {
	return &migrator{db: db, steps: notesMigrations}
}

// NewDatasetMigrator creates a migrator for the optimization dataset schema.
func NewDatasetMigrator(db *DB) Migrator {
	return &migrator{db: db, steps: datasetMigrations}
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

func (m *migrator) Migrate(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.steps {
		if mig.version <= current {
			continue
		}
		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO migrations (version, name) VALUES (?, ?)", mig.version, mig.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.version, mig.name, err)
		}
	}
	return nil
}

func (m *migrator) CurrentVersion(ctx context.Context) (int, error) {
	if _, err := m.db.conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version int
	if err := m.db.conn.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (m *migrator) Rollback(ctx context.Context, targetVersion int) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if targetVersion < 0 || targetVersion > current {
		return fmt.Errorf("cannot roll back to version %d (current: %d)", targetVersion, current)
	}

	for i := len(m.steps) - 1; i >= 0; i-- {
		mig := m.steps[i]
		if mig.version <= targetVersion || mig.version > current {
			continue
		}
		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.down); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM migrations WHERE version = ?", mig.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to roll back migration %d (%s): %w", mig.version, mig.name, err)
		}
	}
	return nil
}

func (m *migrator) GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error) {
	if _, err := m.CurrentVersion(ctx); err != nil {
		return nil, err
	}

	rows, err := m.db.conn.QueryContext(ctx,
		"SELECT version, name, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var applied []MigrationInfo
	for rows.Next() {
		var info MigrationInfo
		if err := rows.Scan(&info.Version, &info.Name, &info.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied = append(applied, info)
	}
	return applied, rows.Err()
}

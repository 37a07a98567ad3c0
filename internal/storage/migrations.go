package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
)

// Migration is one versioned schema change. Up and Down both run inside a
// transaction owned by the sequencer.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
	Down        func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered registry. Versions are contiguous from 1.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: documents, metadata, search index, query cache, FTS mirror",
		Up:          migrateInitialSchemaUp,
		Down:        migrateInitialSchemaDown,
	},
	{
		Version:     2,
		Description: "document tags",
		Up:          migrateDocumentTagsUp,
		Down:        migrateDocumentTagsDown,
	},
}

// SchemaVersion returns the current PRAGMA user_version of the store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, errors.NewStoreError("schema_version", err)
	}
	return v, nil
}

// Migrate brings the schema to the latest registered version.
func (s *Store) Migrate(ctx context.Context) error {
	return s.MigrateTo(ctx, migrations[len(migrations)-1].Version)
}

// MigrateTo runs Up migrations ascending (or Down descending) until the
// stored version equals target. Each migration commits or rolls back alone.
func (s *Store) MigrateTo(ctx context.Context, target int) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if target > current {
		for _, m := range migrations {
			if m.Version <= current || m.Version > target {
				continue
			}
			if err := s.applyMigration(ctx, m, true); err != nil {
				return err
			}
		}
		return nil
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.Version > current || m.Version <= target {
			continue
		}
		if err := s.applyMigration(ctx, m, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration, up bool) error {
	direction := "up"
	step := m.Up
	newVersion := m.Version
	if !up {
		direction = "down"
		step = m.Down
		newVersion = m.Version - 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("migrate", err)
	}
	defer tx.Rollback()

	if err := step(ctx, tx); err != nil {
		return errors.NewStoreError("migrate",
			fmt.Errorf("migration %d (%s) %s failed: %w", m.Version, m.Description, direction, err))
	}

	if up {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Description, formatTime(time.Now()))
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version)
	}
	if err != nil {
		return errors.NewStoreError("migrate", err)
	}

	// PRAGMA does not accept bound parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", newVersion)); err != nil {
		return errors.NewStoreError("migrate", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("migrate", err)
	}

	s.log.Info("applied migration %d %s: %s", m.Version, direction, m.Description)
	return nil
}

func migrateInitialSchemaUp(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL UNIQUE,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size INTEGER NOT NULL CHECK (file_size >= 0),
			file_hash TEXT NOT NULL CHECK (LENGTH(file_hash) = 64),
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			indexed_at TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS document_metadata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			key TEXT NOT NULL CHECK (LENGTH(key) > 0),
			value TEXT NOT NULL,
			UNIQUE (document_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS search_index (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			keyword TEXT NOT NULL,
			frequency INTEGER NOT NULL CHECK (frequency > 0),
			relevance_score REAL NOT NULL CHECK (relevance_score >= 0.0 AND relevance_score <= 1.0),
			position_data TEXT NOT NULL DEFAULT '[]',
			UNIQUE (document_id, keyword)
		)`,
		`CREATE TABLE IF NOT EXISTS search_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query_hash TEXT NOT NULL UNIQUE,
			query_text TEXT NOT NULL,
			results_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0 CHECK (hit_count >= 0),
			CHECK (expires_at > created_at)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_documents_file_path ON documents(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_file_type ON documents(file_type)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_file_hash ON documents(file_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_indexed_at ON documents(indexed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_modified_at ON documents(modified_at)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_document_id ON document_metadata(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_key ON document_metadata(key)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_key_value ON document_metadata(key, value)`,
		`CREATE INDEX IF NOT EXISTS idx_search_keyword ON search_index(keyword)`,
		`CREATE INDEX IF NOT EXISTS idx_search_document_id ON search_index(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_search_relevance ON search_index(relevance_score)`,
		`CREATE INDEX IF NOT EXISTS idx_search_keyword_relevance ON search_index(keyword, relevance_score)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_query_hash ON search_cache(query_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON search_cache(expires_at)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			file_name, content, file_type,
			content='documents', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_insert AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, file_name, content, file_type)
			VALUES (new.id, new.file_name, new.content, new.file_type);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_delete AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, file_name, content, file_type)
			VALUES ('delete', old.id, old.file_name, old.content, old.file_type);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_update AFTER UPDATE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, file_name, content, file_type)
			VALUES ('delete', old.id, old.file_name, old.content, old.file_type);
			INSERT INTO documents_fts(rowid, file_name, content, file_type)
			VALUES (new.id, new.file_name, new.content, new.file_type);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w (statement: %.60s...)", err, stmt)
		}
	}
	return nil
}

func migrateInitialSchemaDown(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP TRIGGER IF EXISTS documents_fts_update`,
		`DROP TRIGGER IF EXISTS documents_fts_delete`,
		`DROP TRIGGER IF EXISTS documents_fts_insert`,
		`DROP TABLE IF EXISTS documents_fts`,
		`DROP TABLE IF EXISTS search_cache`,
		`DROP TABLE IF EXISTS search_index`,
		`DROP TABLE IF EXISTS document_metadata`,
		`DROP TABLE IF EXISTS documents`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateDocumentTagsUp(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS document_tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tag TEXT NOT NULL CHECK (LENGTH(tag) > 0),
			created_at TEXT NOT NULL,
			UNIQUE (document_id, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_document_id ON document_tags(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_tag ON document_tags(tag)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateDocumentTagsDown(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS document_tags`)
	return err
}

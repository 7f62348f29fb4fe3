// Package store implements the MetadataStore: the durable relational record
// of folders, documents, chunks and collections, plus a trigram full-text
// mirror of chunks for substring search.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a *sql.DB opened against one versioned database file.
type Store struct {
	db   *sql.DB
	path string
}

// filename returns the versioned database filename for the given version,
// matching the original `localdocs_v%1.db` naming exactly.
func filename(version int) string {
	return fmt.Sprintf("localdocs_v%d.db", version)
}

// open creates a SQLite connection with pool settings and foreign-key
// enforcement.
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// schema is the current-version DDL. Idempotent: every statement is
// CREATE TABLE/VIRTUAL TABLE IF NOT EXISTS.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_path TEXT NOT NULL UNIQUE
	);`,
	`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_id INTEGER NOT NULL REFERENCES folders(id),
		document_time INTEGER NOT NULL,
		document_path TEXT NOT NULL UNIQUE
	);`,
	`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id),
		chunk_text TEXT NOT NULL,
		file TEXT,
		title TEXT,
		author TEXT,
		subject TEXT,
		keywords TEXT,
		page INTEGER NOT NULL DEFAULT -1,
		line_from INTEGER NOT NULL DEFAULT -1,
		line_to INTEGER NOT NULL DEFAULT -1,
		words INTEGER NOT NULL DEFAULT 0,
		tokens INTEGER NOT NULL DEFAULT 0,
		has_embedding INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		chunk_text, file, title, author, subject, keywords,
		content='chunks', content_rowid='chunk_id', tokenize="trigram"
	);`,
	`CREATE TABLE IF NOT EXISTS collections (
		collection_name TEXT NOT NULL,
		folder_id INTEGER NOT NULL REFERENCES folders(id),
		last_update_time INTEGER,
		embedding_model TEXT NOT NULL,
		force_indexing INTEGER NOT NULL DEFAULT 0,
		UNIQUE(collection_name, folder_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_folder ON documents(folder_id);`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_has_embedding ON chunks(has_embedding);`,
}

// migrate runs idempotent schema creation against db.
func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return New(KindStoreFailure, "schema init", err)
		}
	}
	return nil
}

// Open probes modelPath for a versioned database file, descending from
// SchemaVersion to MinSupportedVersion, and opens the first one found that
// contains a `chunks` table. If the found version is older than
// SchemaVersion, it migrates (see migrate.go) and returns a store backed by
// a freshly created current-version file. If no versioned file exists at
// all, a new current-version database is created.
func Open(modelPath string) (*Store, error) {
	if err := os.MkdirAll(modelPath, 0o755); err != nil {
		return nil, New(KindStoreFailure, "create model_path", err)
	}

	for v := SchemaVersion; v >= MinSupportedVersion; v-- {
		path := filepath.Join(modelPath, filename(v))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		db, err := open(path)
		if err != nil {
			return nil, New(KindStoreFailure, "open existing db", err)
		}
		if !hasChunksTable(db) {
			_ = db.Close()
			continue
		}
		if v == SchemaVersion {
			if err := migrate(db); err != nil {
				_ = db.Close()
				return nil, err
			}
			return &Store{db: db, path: path}, nil
		}
		// Older version found: migrate forward, dropping documents/chunks.
		return migrateForward(modelPath, db, v)
	}

	// Nothing on disk: create a fresh current-version database.
	path := filepath.Join(modelPath, filename(SchemaVersion))
	db, err := open(path)
	if err != nil {
		return nil, New(KindStoreFailure, "create new db", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func hasChunksTable(db *sql.DB) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='chunks'`).Scan(&name)
	return err == nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk path of the currently open database file.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying *sql.DB for callers that need to manage their
// own transaction; the coordinator and scheduler both do.
func (s *Store) DB() *sql.DB {
	return s.db
}

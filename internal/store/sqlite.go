package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a store at dbPath. Use ":memory:" for an
// in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		content BLOB NOT NULL,
		PRIMARY KEY (hash, size)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put stores content under its digest.
func (s *SQLiteStore) Put(ctx context.Context, content []byte) (Digest, error) {
	d := DigestOf(content)
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO blobs (hash, size, content) VALUES (?, ?, ?)",
		d.Hash, d.Size, content,
	)
	if err != nil {
		return Digest{}, fmt.Errorf("insert blob: %w", err)
	}
	return d, nil
}

// Get returns the content stored under d.
func (s *SQLiteStore) Get(ctx context.Context, d Digest) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM blobs WHERE hash = ? AND size = ?",
		d.Hash, d.Size,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
	}
	if err != nil {
		return nil, fmt.Errorf("query blob: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

// Has reports whether d is stored.
func (s *SQLiteStore) Has(ctx context.Context, d Digest) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM blobs WHERE hash = ? AND size = ?",
		d.Hash, d.Size,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query blob: %w", err)
	}
	return n > 0, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

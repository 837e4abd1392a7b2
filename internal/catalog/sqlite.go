package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Lllllllleong/filearchive/internal/models"
)

//go:embed schema.sql
var schema string

// SQLite is a Catalog backed by a local SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite catalog path must be provided")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying catalog schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Put(ctx context.Context, e models.Entry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_entries (
			content_hash, original_name, extension, master_name, status,
			error_details, page_count, size_bytes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			original_name = excluded.original_name,
			extension = excluded.extension,
			master_name = excluded.master_name,
			status = excluded.status,
			error_details = excluded.error_details,
			page_count = excluded.page_count,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at
	`,
		e.ContentHash, e.OriginalName, e.Extension, e.MasterName, string(e.Status),
		e.ErrorDetails, e.PageCount, e.SizeBytes,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storing catalog entry %s: %w", e.ContentHash, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, hash string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, original_name, extension, master_name, status,
		       error_details, page_count, size_bytes, created_at, updated_at
		FROM archive_entries WHERE content_hash = ?
	`, hash)

	var (
		e                    models.Entry
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ContentHash, &e.OriginalName, &e.Extension, &e.MasterName, &status,
		&e.ErrorDetails, &e.PageCount, &e.SizeBytes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog entry %s: %w", hash, err)
	}
	e.Status = models.EntryStatus(status)
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", hash, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", hash, err)
	}
	return &e, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Package metadata persists the per-object attributes that the filesystem
// cannot carry, currently just the Content-Type supplied on upload.
package metadata

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Store is a SQLite-backed table of content types keyed by (bucket, key).
// A missing row means the object has no recorded content type.
type Store struct {
	db *sql.DB
}

// initSchema applies all SQL files in the embedded migrations in
// lexicographical order. Every migration must be idempotent.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Debug("Running migration", "path", path)
		return WithTransaction(ctx, db, func(tx *sql.Tx) error {
			_, execError := tx.ExecContext(ctx, string(content))
			return execError
		})
	})
}

// Open opens (creating if needed) the metadata database at dbPath and
// brings its schema up to date.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("metadata database path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite allows a single writer; serializing here avoids SQLITE_BUSY
	// under concurrent uploads.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTransaction runs a function within a database transaction.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("error executing transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// PutContentType records contentType for the object. An empty contentType
// removes any previously recorded value, so an overwrite without a
// Content-Type header does not inherit the old one.
func (s *Store) PutContentType(ctx context.Context, bucket string, key string, contentType string) error {
	if contentType == "" {
		return s.DeleteContentType(ctx, bucket, key)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_types(bucket, key, content_type, modified_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(bucket, key) DO UPDATE SET
		     content_type = excluded.content_type,
		     modified_at  = excluded.modified_at`,
		bucket, key, contentType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store content type for %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ContentType returns the recorded content type for the object and whether
// one was found.
func (s *Store) ContentType(ctx context.Context, bucket string, key string) (string, bool, error) {
	var contentType string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type FROM content_types WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&contentType)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load content type for %s/%s: %w", bucket, key, err)
	}
	return contentType, true, nil
}

// DeleteContentType forgets the object's content type. Deleting a row that
// does not exist is not an error.
func (s *Store) DeleteContentType(ctx context.Context, bucket string, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM content_types WHERE bucket = ? AND key = ?`,
		bucket, key,
	); err != nil {
		return fmt.Errorf("delete content type for %s/%s: %w", bucket, key, err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.ObjectStore on a local SQLite database.
// Every object carries an integer version that conditional puts compare
// against, so concurrent ledger writers cannot overwrite each other.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ service.ObjectStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps conditional updates serialized and an in-memory
	// database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetObject returns the object under bucket/key or common.ErrNotFound.
func (s *SQLiteStore) GetObject(ctx context.Context, bucket, key string) (*service.Object, error) {
	if err := validateObjectKey(ctx, bucket, key); err != nil {
		return nil, err
	}

	var (
		obj     service.Object
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version, updated_at FROM objects WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&obj.Body, &version, &obj.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}

	obj.Version = strconv.FormatInt(version, 10)
	return &obj, nil
}

// PutObject writes body under bucket/key. With opts.IfAbsent the write only
// succeeds if nothing is stored yet; with opts.IfMatch only if the stored
// version is unchanged. A failed condition returns common.ErrPreconditionFailed.
func (s *SQLiteStore) PutObject(ctx context.Context, bucket, key string, body []byte, opts service.PutOptions) (*service.Object, error) {
	if err := validateObjectKey(ctx, bucket, key); err != nil {
		return nil, err
	}
	if err := validatePutOptions(opts); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var row *sql.Row

	switch {
	case opts.IfAbsent:
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO objects (bucket, key, body, content_type, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (bucket, key) DO NOTHING
			RETURNING version`,
			bucket, key, body, opts.ContentType, now)

	case opts.IfMatch != "":
		expected, err := strconv.ParseInt(opts.IfMatch, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("object %s/%s version %q: %w", bucket, key, opts.IfMatch, common.ErrPreconditionFailed)
		}
		row = s.db.QueryRowContext(ctx, `
			UPDATE objects
			SET body = ?, content_type = ?, version = version + 1, updated_at = ?
			WHERE bucket = ? AND key = ? AND version = ?
			RETURNING version`,
			body, opts.ContentType, now, bucket, key, expected)

	default:
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO objects (bucket, key, body, content_type, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (bucket, key) DO UPDATE SET
				body = excluded.body,
				content_type = excluded.content_type,
				version = objects.version + 1,
				updated_at = excluded.updated_at
			RETURNING version`,
			bucket, key, body, opts.ContentType, now)
	}

	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, common.ErrPreconditionFailed)
		}
		return nil, fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}

	return &service.Object{
		Body:      body,
		Version:   strconv.FormatInt(version, 10),
		UpdatedAt: now,
	}, nil
}

// DeleteObject removes bucket/key. Deleting a missing object is not an error.
func (s *SQLiteStore) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := validateObjectKey(ctx, bucket, key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidBackupPath is returned for destinations VACUUM INTO cannot take safely.
var ErrInvalidBackupPath = errors.New("invalid backup path")

// Backup writes a consistent copy of the store to destPath, which must be an
// absolute path that does not exist yet.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if s.dbPath == ":memory:" {
		return fmt.Errorf("%w: in-memory stores cannot be backed up", ErrInvalidBackupPath)
	}
	if strings.ContainsAny(destPath, `'";`) || !filepath.IsAbs(destPath) || strings.Contains(destPath, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidBackupPath, destPath)
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrInvalidBackupPath, destPath)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// #nosec G201 - destPath is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

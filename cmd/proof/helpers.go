package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/config"
	"github.com/Veraticus/the-proof-must-flow/internal/ledger"
	"github.com/Veraticus/the-proof-must-flow/internal/reference"
	"github.com/Veraticus/the-proof-must-flow/internal/service"
	"github.com/Veraticus/the-proof-must-flow/internal/storage"
	"github.com/Veraticus/the-proof-must-flow/internal/storage/s3store"
)

// services bundles what the commands need from the configured object store.
type services struct {
	cfg       *config.Scoring
	store     service.ObjectStore
	sqlite    *storage.SQLiteStore
	ledger    *ledger.Ledger
	reference *reference.Source
}

// loadScoring reads and validates the scoring configuration.
func loadScoring() (*config.Scoring, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Configuration is invalid, check config.yaml and PROOF_* variables", err)
	}
	return cfg, nil
}

// initServices opens the configured store and builds the ledger and reference
// adapters over it.
func initServices(ctx context.Context) (*services, error) {
	cfg, err := loadScoring()
	if err != nil {
		return nil, err
	}

	svc := &services{cfg: cfg}
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := initSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		svc.sqlite = store
		svc.store = store
	case config.DriverS3:
		store, err := s3store.New(ctx, s3store.Options{
			Region:   cfg.Store.Region,
			Endpoint: cfg.Store.Endpoint,
			Profile:  cfg.Store.Profile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		svc.store = store
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", common.ErrInvalidConfig, cfg.Store.Driver)
	}

	svc.ledger, err = ledger.New(svc.store, cfg.LedgerOptions())
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.reference, err = reference.New(svc.store, cfg.ReferenceOptions())
	if err != nil {
		svc.Close()
		return nil, err
	}

	slog.Debug("Initialized object store", "driver", cfg.Store.Driver)
	return svc, nil
}

// initSQLite opens the store and brings its schema up to date.
func initSQLite(ctx context.Context, path string) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close releases the reference cache and the local database.
func (s *services) Close() {
	if s.reference != nil {
		s.reference.Close()
	}
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewUserError(fmt.Sprintf("File not found: %s", path), err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

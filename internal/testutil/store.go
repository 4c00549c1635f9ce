// Package testutil provides shared test helpers for packages that need an
// object store.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-proof-must-flow/internal/service"
	"github.com/Veraticus/the-proof-must-flow/internal/storage"
)

// SetupTestStore creates a migrated in-memory object store that is closed
// when the test ends.
func SetupTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedObject writes body under bucket/key.
func SeedObject(t *testing.T, store service.ObjectStore, bucket, key string, body []byte) {
	t.Helper()
	if _, err := store.PutObject(context.Background(), bucket, key, body, service.PutOptions{}); err != nil {
		t.Fatalf("failed to seed %s/%s: %v", bucket, key, err)
	}
}

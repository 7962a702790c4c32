package testsupport

import (
	"context"
	"testing"

	"clipshelf/internal/config"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
)

// MustOpenStore opens a metadata.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *metadata.Store {
	t.Helper()

	store, err := metadata.Open(cfg)
	if err != nil {
		t.Fatalf("metadata.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenObjects opens the configured object store for tests.
func MustOpenObjects(t testing.TB, cfg *config.Config) objectstore.Store {
	t.Helper()

	objects, err := objectstore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("objectstore.Open: %v", err)
	}
	return objects
}

// NewClip inserts a clip row directly for tests using the provided store.
func NewClip(t testing.TB, store *metadata.Store, uuid, name string) *metadata.Clip {
	t.Helper()

	clip, err := store.Insert(context.Background(), metadata.NewClip{UUID: uuid, Name: name})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return clip
}

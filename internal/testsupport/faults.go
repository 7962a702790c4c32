package testsupport

import (
	"context"
	"io"
	"sync"

	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/services"
)

// FaultyObjects wraps an object store and fails selected operations with
// services.ErrStorageUnavailable. Counters are safe for concurrent use.
type FaultyObjects struct {
	objectstore.Store

	mu          sync.Mutex
	putFails    int
	deleteFails int
	puts        int
	deletes     int
	getsBlocked bool
}

// NewFaultyObjects wraps inner with no faults armed.
func NewFaultyObjects(inner objectstore.Store) *FaultyObjects {
	return &FaultyObjects{Store: inner}
}

// FailPuts makes the next n puts fail.
func (f *FaultyObjects) FailPuts(n int) {
	f.mu.Lock()
	f.putFails = n
	f.mu.Unlock()
}

// FailDeletes makes the next n deletes fail.
func (f *FaultyObjects) FailDeletes(n int) {
	f.mu.Lock()
	f.deleteFails = n
	f.mu.Unlock()
}

// BlockGets makes every get fail until reset with false.
func (f *FaultyObjects) BlockGets(blocked bool) {
	f.mu.Lock()
	f.getsBlocked = blocked
	f.mu.Unlock()
}

// Puts returns how many puts were attempted.
func (f *FaultyObjects) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// Deletes returns how many deletes were attempted.
func (f *FaultyObjects) Deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

func (f *FaultyObjects) Put(ctx context.Context, key string, body io.Reader) (int64, error) {
	f.mu.Lock()
	f.puts++
	fail := f.putFails > 0
	if fail {
		f.putFails--
	}
	f.mu.Unlock()
	if fail {
		_, _ = io.CopyN(io.Discard, body, 16)
		return 0, services.Wrap(services.ErrStorageUnavailable, "testsupport", "put", "injected fault", nil)
	}
	return f.Store.Put(ctx, key, body)
}

func (f *FaultyObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deletes++
	fail := f.deleteFails > 0
	if fail {
		f.deleteFails--
	}
	f.mu.Unlock()
	if fail {
		return services.Wrap(services.ErrStorageUnavailable, "testsupport", "delete", "injected fault", nil)
	}
	return f.Store.Delete(ctx, key)
}

func (f *FaultyObjects) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	f.mu.Lock()
	blocked := f.getsBlocked
	f.mu.Unlock()
	if blocked {
		return nil, services.Wrap(services.ErrStorageUnavailable, "testsupport", "get", "injected fault", nil)
	}
	return f.Store.Get(ctx, key)
}

// FlakyMetadata wraps a metadata.Store and fails selected writes with
// services.ErrStoreUnavailable.
type FlakyMetadata struct {
	*metadata.Store

	mu          sync.Mutex
	insertFails int
	inserts     int
	insertUUIDs []string
}

// NewFlakyMetadata wraps inner with no faults armed.
func NewFlakyMetadata(inner *metadata.Store) *FlakyMetadata {
	return &FlakyMetadata{Store: inner}
}

// FailInserts makes the next n inserts fail.
func (f *FlakyMetadata) FailInserts(n int) {
	f.mu.Lock()
	f.insertFails = n
	f.mu.Unlock()
}

// InsertUUIDs returns the uuid passed to every insert attempt in order.
func (f *FlakyMetadata) InsertUUIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.insertUUIDs...)
}

func (f *FlakyMetadata) Insert(ctx context.Context, input metadata.NewClip) (*metadata.Clip, error) {
	f.mu.Lock()
	f.inserts++
	f.insertUUIDs = append(f.insertUUIDs, input.UUID)
	fail := f.insertFails > 0
	if fail {
		f.insertFails--
	}
	f.mu.Unlock()
	if fail {
		return nil, services.Wrap(services.ErrStoreUnavailable, "testsupport", "insert", "injected fault", nil)
	}
	return f.Store.Insert(ctx, input)
}

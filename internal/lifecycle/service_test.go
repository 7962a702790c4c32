package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"clipshelf/internal/auth"
	"clipshelf/internal/lifecycle"
	"clipshelf/internal/metadata"
	"clipshelf/internal/services"
	"clipshelf/internal/testsupport"
)

type harness struct {
	svc     *lifecycle.Service
	store   *metadata.Store
	meta    *testsupport.FlakyMetadata
	objects *testsupport.FaultyObjects
}

func newHarness(t *testing.T, mutate func(*lifecycle.Options)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	meta := testsupport.NewFlakyMetadata(store)
	objects := testsupport.NewFaultyObjects(testsupport.MustOpenObjects(t, cfg))

	opts := lifecycle.Options{
		Limits: lifecycle.Limits{
			MaxBytes:          64 * 1024,
			AllowedExtensions: []string{".mp4", ".webm"},
		},
		InsertAttempts: 3,
		PutAttempts:    3,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := lifecycle.New(meta, objects, store, opts)
	if err != nil {
		t.Fatalf("lifecycle.New: %v", err)
	}
	return &harness{svc: svc, store: store, meta: meta, objects: objects}
}

func (h *harness) ingest(t *testing.T, name string, payload []byte) *metadata.Clip {
	t.Helper()
	clip, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name:     name,
		Filename: "clip.mp4",
		Body:     bytes.NewReader(payload),
		Size:     int64(len(payload)),
	})
	if err != nil {
		t.Fatalf("Ingest %q: %v", name, err)
	}
	return clip
}

func (h *harness) objectBytes(t *testing.T, key string) []byte {
	t.Helper()
	obj, err := h.objects.Store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("object %s: %v", key, err)
	}
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		t.Fatalf("read object %s: %v", key, err)
	}
	return data
}

type snapshot struct {
	clips   string
	objects string
}

func (h *harness) snapshot(t *testing.T) snapshot {
	t.Helper()
	ctx := context.Background()
	clips, err := h.store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	rows := make([]string, 0, len(clips))
	for _, c := range clips {
		rows = append(rows, fmt.Sprintf("%d|%s|%s|%s|%s", c.ID, c.UUID, c.Name, c.Description, c.UpdatedAt))
	}
	objects, err := h.objects.Store.List(ctx)
	if err != nil {
		t.Fatalf("objects.List: %v", err)
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, fmt.Sprintf("%s:%d", o.Key, o.Size))
	}
	sort.Strings(keys)
	return snapshot{clips: strings.Join(rows, "\n"), objects: strings.Join(keys, ",")}
}

func (h *harness) openInconsistencies(t *testing.T) []*metadata.Inconsistency {
	t.Helper()
	entries, err := h.store.ListInconsistencies(context.Background(), true)
	if err != nil {
		t.Fatalf("ListInconsistencies: %v", err)
	}
	return entries
}

func TestIngestRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	payload := testsupport.Payload(10_000)

	clip := h.ingest(t, "A", payload)
	if clip.ID == 0 || clip.UUID == "" {
		t.Fatalf("expected assigned id and uuid: %#v", clip)
	}

	got, err := h.svc.Get(context.Background(), clip.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "A" || got.Description != "" || got.UUID != clip.UUID {
		t.Fatalf("unexpected clip: %#v", got)
	}

	_, obj, err := h.svc.Open(context.Background(), clip.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("payload mismatch after round trip")
	}
}

func TestIngestRoundTripWithDescription(t *testing.T) {
	h := newHarness(t, nil)
	clip, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name:        "A",
		Description: "B",
		Filename:    "a.webm",
		Body:        strings.NewReader("payload-bytes"),
		Size:        -1,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got, err := h.svc.Get(context.Background(), clip.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "A" || got.Description != "B" {
		t.Fatalf("unexpected fields: %#v", got)
	}
	if string(h.objectBytes(t, got.UUID)) != "payload-bytes" {
		t.Fatal("stored object does not match payload")
	}
}

func TestMutationsRequireSession(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "keep", testsupport.Payload(128))
	before := h.snapshot(t)
	ctx := context.Background()

	if _, err := h.svc.Edit(ctx, auth.Anonymous, clip.ID, "changed", "x"); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on edit, got %v", err)
	}
	if _, err := h.svc.Delete(ctx, auth.Anonymous, clip.ID); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on delete, got %v", err)
	}
	_, err := h.svc.Ingest(ctx, auth.Anonymous, lifecycle.IngestRequest{
		Name: "sneaky", Filename: "x.mp4", Body: strings.NewReader("data"), Size: 4,
	})
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on ingest, got %v", err)
	}
	// unauthorized checks precede existence checks
	if _, err := h.svc.Delete(ctx, auth.Anonymous, 9999); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing id, got %v", err)
	}

	if after := h.snapshot(t); after != before {
		t.Fatalf("stores changed by unauthorized calls:\nbefore %+v\nafter  %+v", before, after)
	}
	if h.objects.Puts() != 1 || h.objects.Deletes() != 0 {
		t.Fatalf("unexpected storage calls: puts=%d deletes=%d", h.objects.Puts(), h.objects.Deletes())
	}
}

func TestConcurrentIngestsKeepTheirOwnPayloads(t *testing.T) {
	h := newHarness(t, nil)
	const workers = 8

	type result struct {
		clip    *metadata.Clip
		payload []byte
	}
	results := make(chan result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := append([]byte(fmt.Sprintf("clip-%d:", i)), testsupport.Payload(2048+i*13)...)
			clip, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
				Name:     fmt.Sprintf("clip %d", i),
				Filename: "c.mp4",
				Body:     bytes.NewReader(payload),
				Size:     int64(len(payload)),
			})
			if err != nil {
				t.Errorf("Ingest %d: %v", i, err)
				return
			}
			results <- result{clip: clip, payload: payload}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for r := range results {
		if seen[r.clip.UUID] {
			t.Fatalf("uuid %s assigned twice", r.clip.UUID)
		}
		seen[r.clip.UUID] = true
		stored, err := h.svc.Get(context.Background(), r.clip.ID)
		if err != nil {
			t.Fatalf("Get %d: %v", r.clip.ID, err)
		}
		if stored.UUID != r.clip.UUID || stored.Name != r.clip.Name {
			t.Fatalf("row mismatch: %#v vs %#v", stored, r.clip)
		}
		if !bytes.Equal(h.objectBytes(t, stored.UUID), r.payload) {
			t.Fatalf("clip %q resolved to another clip's payload", stored.Name)
		}
	}
	if len(seen) != workers {
		t.Fatalf("expected %d clips, got %d", workers, len(seen))
	}
}

func TestDeleteObjectFailureStillSucceeds(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "doomed", testsupport.Payload(512))

	h.objects.FailDeletes(1)
	removed, err := h.svc.Delete(context.Background(), auth.Authenticated, clip.ID)
	if err != nil {
		t.Fatalf("expected delete to succeed despite storage fault, got %v", err)
	}
	if removed.UUID != clip.UUID {
		t.Fatalf("unexpected removed clip: %#v", removed)
	}

	if _, err := h.svc.Get(context.Background(), clip.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	entries := h.openInconsistencies(t)
	if len(entries) != 1 || entries[0].ClipUUID != clip.UUID || entries[0].Kind != metadata.KindOrphanObject {
		t.Fatalf("expected orphan_object inconsistency for %s, got %#v", clip.UUID, entries)
	}
	if _, err := h.objects.Store.Stat(context.Background(), clip.UUID); err != nil {
		t.Fatalf("expected orphaned object to remain for the sweep: %v", err)
	}
}

func TestDeleteRemovesMetadataAndObject(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "bye", testsupport.Payload(64))

	if _, err := h.svc.Delete(context.Background(), auth.Authenticated, clip.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.objects.Store.Stat(context.Background(), clip.UUID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected object removed, got %v", err)
	}
	if _, err := h.svc.Delete(context.Background(), auth.Authenticated, clip.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if entries := h.openInconsistencies(t); len(entries) != 0 {
		t.Fatalf("expected no inconsistencies, got %#v", entries)
	}
}

func TestIngestStorageFailureCreatesNoRow(t *testing.T) {
	h := newHarness(t, nil)
	h.objects.FailPuts(10)

	_, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name: "lost", Filename: "x.mp4", Body: bytes.NewReader([]byte("payload")), Size: 7,
	})
	if !errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	clips, err := h.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(clips) != 0 {
		t.Fatalf("expected no rows after storage failure, got %d", len(clips))
	}
	if h.objects.Puts() != 3 {
		t.Fatalf("expected put to be retried 3 times, got %d", h.objects.Puts())
	}
}

func TestIngestInterruptedBodyIsValidationFailure(t *testing.T) {
	h := newHarness(t, nil)
	before := h.snapshot(t)
	body := io.MultiReader(bytes.NewReader(testsupport.Payload(4096)), iotest.ErrReader(io.ErrUnexpectedEOF))

	_, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name: "cut", Filename: "cut.mp4", Body: body, Size: -1,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("interrupted body reported as storage outage: %v", err)
	}
	if h.objects.Puts() != 1 {
		t.Fatalf("interrupted body must not be retried, got %d puts", h.objects.Puts())
	}
	if after := h.snapshot(t); after != before {
		t.Fatalf("interrupted upload changed state:\nbefore %+v\nafter  %+v", before, after)
	}
	if entries := h.openInconsistencies(t); len(entries) != 0 {
		t.Fatalf("expected no inconsistencies, got %#v", entries)
	}
}

func TestIngestRetriesTransientPutFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.objects.FailPuts(1)
	payload := testsupport.Payload(4096)

	clip := h.ingest(t, "second time lucky", payload)
	if !bytes.Equal(h.objectBytes(t, clip.UUID), payload) {
		t.Fatal("retried put stored wrong bytes")
	}
	if h.objects.Puts() != 2 {
		t.Fatalf("expected 2 put attempts, got %d", h.objects.Puts())
	}
}

func TestIngestRetriesInsertWithSameUUID(t *testing.T) {
	h := newHarness(t, nil)
	h.meta.FailInserts(2)

	clip := h.ingest(t, "persistent", testsupport.Payload(256))
	attempts := h.meta.InsertUUIDs()
	if len(attempts) != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", len(attempts))
	}
	for _, key := range attempts {
		if key != clip.UUID {
			t.Fatalf("insert retry used a different uuid: %v", attempts)
		}
	}
	if h.objects.Puts() != 1 {
		t.Fatalf("expected object uploaded once, got %d", h.objects.Puts())
	}
}

func TestIngestInsertFailureRecordsOrphan(t *testing.T) {
	h := newHarness(t, func(o *lifecycle.Options) { o.InsertAttempts = 2 })
	h.meta.FailInserts(5)

	_, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name: "orphan", Filename: "x.mp4", Body: bytes.NewReader([]byte("payload")), Size: 7,
	})
	if !errors.Is(err, services.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	attempts := h.meta.InsertUUIDs()
	if len(attempts) != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", len(attempts))
	}
	entries := h.openInconsistencies(t)
	if len(entries) != 1 || entries[0].Kind != metadata.KindOrphanObject || entries[0].ClipUUID != attempts[0] {
		t.Fatalf("expected orphan entry for %s, got %#v", attempts[0], entries)
	}
	if _, err := h.objects.Store.Stat(context.Background(), attempts[0]); err != nil {
		t.Fatalf("expected orphan object to remain: %v", err)
	}
}

func TestIngestValidation(t *testing.T) {
	h := newHarness(t, func(o *lifecycle.Options) {
		o.Limits.MaxBytes = 1024
		o.Limits.MaxNameRunes = 10
		o.Limits.MaxDescriptionRunes = 20
	})
	cases := []struct {
		name string
		req  lifecycle.IngestRequest
		want string
	}{
		{"empty name", lifecycle.IngestRequest{Name: "   ", Filename: "a.mp4", Body: strings.NewReader("x"), Size: 1}, "name is required"},
		{"long name", lifecycle.IngestRequest{Name: strings.Repeat("é", 11), Filename: "a.mp4", Body: strings.NewReader("x"), Size: 1}, "name must be at most 10"},
		{"control char", lifecycle.IngestRequest{Name: "bad\x00name", Filename: "a.mp4", Body: strings.NewReader("x"), Size: 1}, "control characters"},
		{"long description", lifecycle.IngestRequest{Name: "ok", Description: strings.Repeat("d", 21), Filename: "a.mp4", Body: strings.NewReader("x"), Size: 1}, "description must be at most 20"},
		{"extension", lifecycle.IngestRequest{Name: "ok", Filename: "a.exe", Body: strings.NewReader("x"), Size: 1}, "filename must end in"},
		{"no filename", lifecycle.IngestRequest{Name: "ok", Body: strings.NewReader("x"), Size: 1}, "filename is required"},
		{"declared empty", lifecycle.IngestRequest{Name: "ok", Filename: "a.mp4", Body: strings.NewReader(""), Size: 0}, "payload is empty"},
		{"declared large", lifecycle.IngestRequest{Name: "ok", Filename: "a.mp4", Body: strings.NewReader("x"), Size: 2048}, "exceeds 1024"},
		{"streamed empty", lifecycle.IngestRequest{Name: "ok", Filename: "a.mp4", Body: strings.NewReader(""), Size: -1}, "payload is empty"},
		{"streamed large", lifecycle.IngestRequest{Name: "ok", Filename: "a.mp4", Body: io.MultiReader(bytes.NewReader(testsupport.Payload(4096))), Size: -1}, "exceeds 1024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Ingest(context.Background(), auth.Authenticated, tc.req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}

	snap := h.snapshot(t)
	if snap.clips != "" || snap.objects != "" {
		t.Fatalf("rejected uploads left state behind: %+v", snap)
	}
}

func TestIngestAcceptsPayloadAtLimit(t *testing.T) {
	h := newHarness(t, func(o *lifecycle.Options) { o.Limits.MaxBytes = 100 })
	payload := testsupport.Payload(100)
	clip, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name: "exact", Filename: "a.mp4", Body: io.MultiReader(bytes.NewReader(payload)), Size: -1,
	})
	if err != nil {
		t.Fatalf("Ingest at limit: %v", err)
	}
	if !bytes.Equal(h.objectBytes(t, clip.UUID), payload) {
		t.Fatal("payload mismatch at limit")
	}
}

func TestIngestNormalizesNames(t *testing.T) {
	h := newHarness(t, nil)
	clip, err := h.svc.Ingest(context.Background(), auth.Authenticated, lifecycle.IngestRequest{
		Name:        "  Cafe\u0301 ",
		Description: " multi\nline ",
		Filename:    "CLIP.MP4",
		Body:        strings.NewReader("x"),
		Size:        1,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if clip.Name != "Caf\u00e9" {
		t.Fatalf("expected NFC-normalized trimmed name, got %q", clip.Name)
	}
	if clip.Description != "multi\nline" {
		t.Fatalf("unexpected description %q", clip.Description)
	}
}

func TestIngestSkipsCollidingUUIDs(t *testing.T) {
	var h *harness
	keys := []string{"taken-row", "taken-object", "fresh"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		k := keys[0]
		if len(keys) > 1 {
			keys = keys[1:]
		}
		return k
	}
	h = newHarness(t, func(o *lifecycle.Options) { o.NewUUID = next })
	testsupport.NewClip(t, h.store, "taken-row", "existing")
	if _, err := h.objects.Store.Put(context.Background(), "taken-object", strings.NewReader("stray")); err != nil {
		t.Fatalf("seed object: %v", err)
	}

	clip := h.ingest(t, "new", testsupport.Payload(32))
	if clip.UUID != "fresh" {
		t.Fatalf("expected collision to be skipped, got uuid %q", clip.UUID)
	}
	if string(h.objectBytes(t, "taken-object")) != "stray" {
		t.Fatal("existing object was overwritten")
	}
}

func TestEdit(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "before", testsupport.Payload(32))
	ctx := context.Background()

	updated, err := h.svc.Edit(ctx, auth.Authenticated, clip.ID, " after ", "described")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.Name != "after" || updated.Description != "described" || updated.UUID != clip.UUID {
		t.Fatalf("unexpected edit result: %#v", updated)
	}
	if h.objects.Puts() != 1 {
		t.Fatal("edit must not touch storage")
	}
	if _, err := h.svc.Edit(ctx, auth.Authenticated, clip.ID+42, "x", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.svc.Edit(ctx, auth.Authenticated, clip.ID, "", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOpenMissingObjectRecordsInconsistency(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "vanishing", testsupport.Payload(32))
	if err := h.objects.Store.Delete(context.Background(), clip.UUID); err != nil {
		t.Fatalf("remove object behind the service: %v", err)
	}

	_, _, err := h.svc.Open(context.Background(), clip.ID)
	if !errors.Is(err, services.ErrNotFound) || !errors.Is(err, services.ErrInconsistency) {
		t.Fatalf("expected not found inconsistency, got %v", err)
	}
	entries := h.openInconsistencies(t)
	if len(entries) != 1 || entries[0].Kind != metadata.KindMissingObject {
		t.Fatalf("expected missing_object entry, got %#v", entries)
	}
}

func TestOpenStorageOutage(t *testing.T) {
	h := newHarness(t, nil)
	clip := h.ingest(t, "offline", testsupport.Payload(32))
	h.objects.BlockGets(true)

	_, _, err := h.svc.Open(context.Background(), clip.ID)
	if !errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if entries := h.openInconsistencies(t); len(entries) != 0 {
		t.Fatalf("outage must not be recorded as inconsistency: %#v", entries)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	objects := testsupport.MustOpenObjects(t, cfg)

	svc, err := lifecycle.NewFromConfig(cfg, store, objects, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	limits := svc.Limits()
	if limits.MaxBytes != cfg.Upload.MaxBytes || limits.MaxNameRunes != cfg.Upload.MaxNameRunes {
		t.Fatalf("unexpected limits: %+v", limits)
	}
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.svc.Get(ctx, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := h.svc.Delete(ctx, auth.Authenticated, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
	if h.objects.Deletes() != 0 {
		t.Fatal("delete of an unknown id must not touch storage")
	}
}

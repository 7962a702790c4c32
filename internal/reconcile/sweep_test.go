package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clipshelf/internal/metadata"
	"clipshelf/internal/reconcile"
	"clipshelf/internal/services"
	"clipshelf/internal/testsupport"
)

type fixture struct {
	store   *metadata.Store
	objects *testsupport.FaultyObjects
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return fixture{
		store:   testsupport.MustOpenStore(t, cfg),
		objects: testsupport.NewFaultyObjects(testsupport.MustOpenObjects(t, cfg)),
	}
}

func (f fixture) put(t *testing.T, key string) {
	t.Helper()
	if _, err := f.objects.Put(context.Background(), key, strings.NewReader("payload")); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func (f fixture) sweeper(t *testing.T, skew time.Duration, dryRun bool) *reconcile.Sweeper {
	t.Helper()
	sweeper, err := reconcile.New(f.store, f.objects, reconcile.Options{
		Grace:  30 * time.Minute,
		DryRun: dryRun,
		Clock:  func() time.Time { return time.Now().Add(skew) },
	})
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}
	return sweeper
}

func TestSweepRemovesAgedOrphans(t *testing.T) {
	f := newFixture(t)
	testsupport.NewClip(t, f.store, "kept", "kept")
	f.put(t, "kept")
	f.put(t, "orphan")

	report, err := f.sweeper(t, time.Hour, false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.OrphansRemoved) != 1 || report.OrphansRemoved[0] != "orphan" {
		t.Fatalf("expected orphan removed, got %#v", report)
	}
	if _, err := f.objects.Stat(context.Background(), "orphan"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected orphan gone, got %v", err)
	}
	if _, err := f.objects.Stat(context.Background(), "kept"); err != nil {
		t.Fatalf("referenced object must survive: %v", err)
	}
}

func TestSweepSparesYoungOrphans(t *testing.T) {
	f := newFixture(t)
	f.put(t, "in-flight")

	report, err := f.sweeper(t, 0, false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.OrphansYoung != 1 || len(report.OrphansRemoved) != 0 {
		t.Fatalf("expected young orphan to be spared, got %#v", report)
	}
	if _, err := f.objects.Stat(context.Background(), "in-flight"); err != nil {
		t.Fatalf("young object must survive: %v", err)
	}
}

func TestSweepRecordsMissingObjects(t *testing.T) {
	f := newFixture(t)
	testsupport.NewClip(t, f.store, "ghost", "ghost")

	report, err := f.sweeper(t, time.Hour, false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.MissingObjects) != 1 || report.MissingObjects[0] != "ghost" {
		t.Fatalf("expected missing object reported, got %#v", report)
	}
	entries, err := f.store.ListInconsistencies(context.Background(), true)
	if err != nil {
		t.Fatalf("ListInconsistencies: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != metadata.KindMissingObject {
		t.Fatalf("expected missing_object entry, got %#v", entries)
	}
	if exists, err := f.store.UUIDExists(context.Background(), "ghost"); err != nil || !exists {
		t.Fatalf("sweep must not delete rows: exists=%v err=%v", exists, err)
	}
}

func TestSweepResolvesStaleEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// orphan entry whose object has since been removed by hand
	if err := f.store.RecordInconsistency(ctx, "cleaned-up", metadata.KindOrphanObject, "left by failed delete"); err != nil {
		t.Fatalf("RecordInconsistency: %v", err)
	}
	// missing entry whose object was restored
	testsupport.NewClip(t, f.store, "restored", "restored")
	f.put(t, "restored")
	if err := f.store.RecordInconsistency(ctx, "restored", metadata.KindMissingObject, "vanished"); err != nil {
		t.Fatalf("RecordInconsistency: %v", err)
	}

	report, err := f.sweeper(t, time.Hour, false).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.ResolvedEntries != 2 {
		t.Fatalf("expected 2 resolved entries, got %d", report.ResolvedEntries)
	}
	open, err := f.store.ListInconsistencies(ctx, true)
	if err != nil {
		t.Fatalf("ListInconsistencies: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected ledger to be clear, got %#v", open)
	}
}

func TestSweepRecordsUndeletableOrphans(t *testing.T) {
	f := newFixture(t)
	f.put(t, "sticky")
	f.objects.FailDeletes(1)

	report, err := f.sweeper(t, time.Hour, false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.OrphansFailed) != 1 {
		t.Fatalf("expected failed orphan, got %#v", report)
	}
	entries, err := f.store.ListInconsistencies(context.Background(), true)
	if err != nil {
		t.Fatalf("ListInconsistencies: %v", err)
	}
	if len(entries) != 1 || entries[0].ClipUUID != "sticky" || entries[0].Kind != metadata.KindOrphanObject {
		t.Fatalf("expected orphan entry, got %#v", entries)
	}

	report, err = f.sweeper(t, time.Hour, false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if len(report.OrphansRemoved) != 1 || report.ResolvedEntries != 1 {
		t.Fatalf("expected second sweep to remove and resolve, got %#v", report)
	}
}

func TestSweepDryRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.put(t, "orphan")
	testsupport.NewClip(t, f.store, "ghost", "ghost")

	report, err := f.sweeper(t, time.Hour, true).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !report.DryRun || len(report.OrphansRemoved) != 1 || len(report.MissingObjects) != 1 {
		t.Fatalf("unexpected dry-run report: %#v", report)
	}
	if _, err := f.objects.Stat(context.Background(), "orphan"); err != nil {
		t.Fatalf("dry run removed object: %v", err)
	}
	entries, err := f.store.ListInconsistencies(context.Background(), false)
	if err != nil {
		t.Fatalf("ListInconsistencies: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dry run wrote ledger entries: %#v", entries)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := f.sweeper(t, 0, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestLastReportsMostRecentSweep(t *testing.T) {
	f := newFixture(t)
	sweeper := f.sweeper(t, 0, true)
	if _, _, ok := sweeper.Last(); ok {
		t.Fatal("expected no report before the first sweep")
	}
	f.put(t, "loose")
	if _, err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	last, at, ok := sweeper.Last()
	if !ok || at.IsZero() {
		t.Fatal("expected a recorded report")
	}
	if last.Objects != 1 || !last.DryRun {
		t.Fatalf("unexpected last report: %#v", last)
	}
}

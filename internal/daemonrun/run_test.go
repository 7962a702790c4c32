package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipshelf/internal/testsupport"
)

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "debug"})
	}()

	pidPath := filepath.Join(cfg.Paths.DataDir, "clipshelfd.pid")
	deadline := time.Now().Add(10 * time.Second)
	for {
		if raw, err := os.ReadFile(pidPath); err == nil && strings.TrimSpace(string(raw)) != "" {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("pid file never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "clipshelfd.log")); err != nil {
		t.Fatalf("expected log pointer: %v", err)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() { first <- Run(ctx, cfg, Options{}) }()

	lock := cfg.LockPath()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(lock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lock file never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// let Start finish binding before contending
	time.Sleep(50 * time.Millisecond)

	err := Run(ctx, cfg, Options{})
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
	cancel()
	if err := <-first; err != nil {
		t.Fatalf("first Run: %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		t.Fatal("expected pid contents")
	}
}

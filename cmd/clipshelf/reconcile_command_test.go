package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReconcileDryRunThenSweep(t *testing.T) {
	env := setupCLITestEnv(t)

	orphan := filepath.Join(env.cfg.Storage.Dir, "stray-object")
	if err := os.MkdirAll(env.cfg.Storage.Dir, 0o755); err != nil {
		t.Fatalf("mkdir storage: %v", err)
	}
	if err := os.WriteFile(orphan, []byte("left behind"), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatalf("age orphan: %v", err)
	}

	out, _, err := runCLI(t, []string{"reconcile", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile --dry-run: %v", err)
	}
	requireContains(t, out, "would remove orphan stray-object")
	if _, err := os.Stat(orphan); err != nil {
		t.Fatalf("dry run must keep the object: %v", err)
	}

	out, _, err = runCLI(t, []string{"--json", "reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var payload struct {
		Report struct {
			OrphansRemoved []string `json:"orphansRemoved"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Report.OrphansRemoved) != 1 || payload.Report.OrphansRemoved[0] != "stray-object" {
		t.Fatalf("unexpected report: %s", out)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphan removed, got %v", err)
	}
}

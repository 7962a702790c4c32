package main

import (
	"encoding/json"
	"strings"
	"testing"

	"clipshelf/internal/api"
)

func TestStatusRendersStores(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Stores ==")
	requireContains(t, out, "metadata:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "no open entries")

	out, _, err = runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.ServerStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.Stores) != 2 {
		t.Fatalf("unexpected stores: %#v", status.Stores)
	}
}

func TestStatusReportsUnreachableServer(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Close()

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when server is down")
	}
	requireContains(t, err.Error(), "clipshelf serve")
	requireContains(t, out, "[ERROR]")
}

func TestRenderStatusLineColor(t *testing.T) {
	plain := renderStatusLine("Ledger", statusWarn, "2 open entries", false)
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("unexpected color codes: %q", plain)
	}
	colored := renderStatusLine("Ledger", statusWarn, "2 open entries", true)
	if !strings.HasPrefix(colored, ansiYellow) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected yellow line, got %q", colored)
	}
}

func TestRenderStatusListsInconsistencies(t *testing.T) {
	status := &api.ServerStatus{
		PID:             42,
		Stores:          []api.StoreHealth{{Name: "storage", Target: "fs:/x", Healthy: false, Detail: "permission denied"}},
		Inconsistencies: []api.Inconsistency{{ClipUUID: "abc", Kind: "orphan_object", Detail: "insert failed"}},
		LastReconcile:   &api.ReconcileReport{Objects: 3, MissingObjects: []string{"m"}, DryRun: true},
	}
	out := renderStatus("http://x", status, false)
	requireContains(t, out, "[ERROR] fs:/x (permission denied)")
	requireContains(t, out, "1 open entries")
	requireContains(t, out, "orphan_object:")
	requireContains(t, out, "(dry run)")
}

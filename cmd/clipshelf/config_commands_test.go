package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate", "--check-stores"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Metadata store:")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestSampleTargetPrefersPathFlag(t *testing.T) {
	dir := t.TempDir()
	got, err := sampleTarget(filepath.Join(dir, "a.toml"), filepath.Join(dir, "b.toml"))
	if err != nil || got != filepath.Join(dir, "a.toml") {
		t.Fatalf("sampleTarget = %q, %v", got, err)
	}
	got, err = sampleTarget("", filepath.Join(dir, "b.toml"))
	if err != nil || got != filepath.Join(dir, "b.toml") {
		t.Fatalf("sampleTarget fallback = %q, %v", got, err)
	}
}

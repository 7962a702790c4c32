package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	s := &Store{dialect: postgresDialect}
	got := s.rebind("UPDATE clips SET name = ?, description = ? WHERE id = ?")
	want := "UPDATE clips SET name = $1, description = $2 WHERE id = $3"
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}

	lite := &Store{dialect: sqliteDialect}
	if q := lite.rebind("SELECT ? "); q != "SELECT ? " {
		t.Fatalf("sqlite query should be unchanged, got %q", q)
	}
}

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://clips:secret@db:5432/clips?sslmode=disable": "postgres://***@db:5432/clips?sslmode=disable",
		"host=db user=clips": "host=db user=clips",
	}
	for in, want := range cases {
		if got := redactDSN(in); got != want {
			t.Fatalf("redactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrateRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clips.db")
	store, err := OpenSQLite(path, 1)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	if err := store.migrate(ctx); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE schema_version SET version = ?", schemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenSQLite(path, 1); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyRecordsAppliedOnce(t *testing.T) {
	db := openTestDB(t)
	migrations := fstest.MapFS{
		"m/001_matches.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE matches (id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE matches;\n")},
		"m/002_events.sql":  {Data: []byte("CREATE TABLE events (seq INTEGER PRIMARY KEY);")},
		"m/README.md":       {Data: []byte("ignored")},
	}
	m := Migrator{FS: migrations, Root: "m", Now: func() time.Time { return time.Unix(1700000000, 0) }}

	applied, err := m.Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 2 || applied[0] != "m/001_matches.sql" || applied[1] != "m/002_events.sql" {
		t.Fatalf("applied = %v", applied)
	}

	again, err := m.Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("reapplied = %v, want none", again)
	}

	var appliedAt int64
	if err := db.QueryRow("SELECT applied_at FROM schema_migrations WHERE name = ?", "m/001_matches.sql").Scan(&appliedAt); err != nil {
		t.Fatalf("read applied_at: %v", err)
	}
	if appliedAt != 1700000000000 {
		t.Fatalf("applied_at = %d, want 1700000000000", appliedAt)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}, "."); err == nil {
		t.Fatal("expected nil db error")
	}
}

func TestApplyStopsOnCancelledContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := Migrator{FS: fstest.MapFS{"001.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")}}}
	if _, err := m.Apply(ctx, db); err == nil {
		t.Fatal("expected cancelled context error")
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "CREATE TABLE a (id INTEGER);", want: "CREATE TABLE a (id INTEGER);"},
		{in: "-- +migrate Up\nCREATE TABLE a;\n-- +migrate Down\nDROP TABLE a;", want: "\nCREATE TABLE a;\n"},
		{in: "-- +migrate Up\nCREATE TABLE b;", want: "\nCREATE TABLE b;"},
	}
	for _, tt := range tests {
		if got := ExtractUpMigration(tt.in); got != tt.want {
			t.Fatalf("ExtractUpMigration(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table matches already exists")) {
		t.Fatal("expected already exists match")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("unexpected match")
	}
	if IsAlreadyExistsError(nil) {
		t.Fatal("nil error matched")
	}
}

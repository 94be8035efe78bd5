package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestOpen_FreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scenegov.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	var mode string
	if err := database.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var version int
	if err := database.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestOpen_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenegov.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer second.Close()

	var rows int
	if err := second.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatalf("failed to count schema versions: %v", err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", rows, len(migrations))
	}
}

func TestRunMigrations_UpgradesFromV1(t *testing.T) {
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if err := createVersionTable(database); err != nil {
		t.Fatal(err)
	}
	tx, err := database.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := migrationV1(tx); err != nil {
		t.Fatalf("migrationV1 failed: %v", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// Two active versions of one package predate the unique index.
	for _, v := range []struct{ version, at string }{{"1.0.0", "2026-01-01T00:00:00Z"}, {"1.1.0", "2026-02-01T00:00:00Z"}} {
		_, err := database.Exec(`INSERT INTO installed_packages (package_name, installed_version, checksum, scene_channel, active, installed_at) VALUES ('crm', ?, 'x', 'stable', 1, ?)`, v.version, v.at)
		if err != nil {
			t.Fatalf("failed to seed package: %v", err)
		}
	}

	if err := InitSchema(database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	var active string
	if err := database.QueryRow("SELECT installed_version FROM installed_packages WHERE active = 1").Scan(&active); err != nil {
		t.Fatalf("expected exactly one active row: %v", err)
	}
	if active != "1.1.0" {
		t.Errorf("active version = %q, want 1.1.0", active)
	}

	_, err = database.Exec(`INSERT INTO governance_logs (action, trace_id, scope, created_at) VALUES ('rollback', 't1', 'global', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to append log: %v", err)
	}
	if _, err := database.Exec("DELETE FROM governance_logs"); err == nil {
		t.Error("expected DELETE on governance_logs to be rejected after migration")
	}
}

func TestGetSchemaSQL_LogIsAppendOnly(t *testing.T) {
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if _, err := database.Exec(GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	_, err = database.Exec(`INSERT INTO governance_logs (action, trace_id, scope, created_at) VALUES ('set_channel', 't1', 'global', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to append log: %v", err)
	}

	if _, err := database.Exec("UPDATE governance_logs SET reason = 'edited'"); err == nil {
		t.Error("expected UPDATE to be rejected")
	}
	if _, err := database.Exec("DELETE FROM governance_logs"); err == nil {
		t.Error("expected DELETE to be rejected")
	}
	if _, err := database.Exec(`INSERT INTO governance_logs (action, trace_id, scope, created_at) VALUES ('bogus', 't2', 'global', '2026-01-01T00:00:00Z')`); err == nil {
		t.Error("expected unknown action to be rejected")
	}
}

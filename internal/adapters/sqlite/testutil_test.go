// Package sqlite_test contains integration tests for the SQLite store.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// Setup uses db.GetSchemaSQL() so tests run against the authoritative schema.
// DO NOT hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/scenegov/internal/adapters/sqlite"
	"github.com/example/scenegov/internal/db"
	"github.com/example/scenegov/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// One connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// setupTestStore returns a store over a fresh test database.
func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	return sqlite.NewStore(setupTestDB(t))
}

// appendTestLog appends a governance log entry in its own transaction.
func appendTestLog(t *testing.T, store *sqlite.Store, entry *secondary.GovernanceLogRecord) {
	t.Helper()
	err := store.Update(context.Background(), func(tx secondary.WriteTx) error {
		return tx.AppendLog(context.Background(), entry)
	})
	if err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
}

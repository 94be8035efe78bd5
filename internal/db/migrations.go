package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_governance_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "make_governance_logs_append_only",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "enforce_one_active_package_version",
		Up:      migrationV3,
	},
}

func createVersionTable(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(database *sql.DB) error {
	if err := createVersionTable(database); err != nil {
		return err
	}

	var currentVersion int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the config, log, scene and package tables
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS config_values (
			config_key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			version INTEGER NOT NULL CHECK(version > 0),
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS governance_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL CHECK(action IN ('set_channel', 'rollback', 'rollback_cleared', 'pin_stable', 'export_contract', 'auto_degrade_triggered', 'auto_degrade_notify', 'package_import', 'package_export')),
			trace_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			company_id INTEGER,
			from_channel TEXT,
			to_channel TEXT,
			from_ref TEXT,
			to_ref TEXT,
			reason TEXT,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_governance_logs_trace ON governance_logs(trace_id);
		CREATE INDEX IF NOT EXISTS idx_governance_logs_scope_created ON governance_logs(scope, created_at);

		CREATE TABLE IF NOT EXISTS scenes (
			channel TEXT NOT NULL CHECK(channel IN ('stable', 'beta', 'dev')),
			scene_key TEXT NOT NULL,
			route TEXT NOT NULL,
			payload TEXT NOT NULL,
			package_name TEXT NOT NULL,
			package_version TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (channel, scene_key),
			UNIQUE (channel, route)
		);

		CREATE INDEX IF NOT EXISTS idx_scenes_package ON scenes(package_name, channel);

		CREATE TABLE IF NOT EXISTS installed_packages (
			package_name TEXT NOT NULL,
			installed_version TEXT NOT NULL,
			checksum TEXT NOT NULL,
			scene_channel TEXT NOT NULL CHECK(scene_channel IN ('stable', 'beta', 'dev')),
			scene_keys TEXT NOT NULL DEFAULT '[]',
			active INTEGER NOT NULL DEFAULT 0 CHECK(active IN (0, 1)),
			installed_at TEXT NOT NULL,
			PRIMARY KEY (package_name, installed_version)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create governance tables: %w", err)
	}
	return nil
}

// migrationV2 rejects UPDATE and DELETE on the governance log
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS governance_logs_no_update
		BEFORE UPDATE ON governance_logs
		BEGIN
			SELECT RAISE(ABORT, 'governance_logs is append-only');
		END;

		CREATE TRIGGER IF NOT EXISTS governance_logs_no_delete
		BEFORE DELETE ON governance_logs
		BEGIN
			SELECT RAISE(ABORT, 'governance_logs is append-only');
		END;
	`)
	if err != nil {
		return fmt.Errorf("failed to create governance log triggers: %w", err)
	}
	return nil
}

// migrationV3 allows at most one active version per package name.
// Older rows are deactivated first, keeping the most recently installed one.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`
		UPDATE installed_packages SET active = 0
		WHERE active = 1 AND rowid NOT IN (
			SELECT rowid FROM installed_packages p
			WHERE p.active = 1 AND p.installed_at = (
				SELECT MAX(installed_at) FROM installed_packages q
				WHERE q.package_name = p.package_name AND q.active = 1
			)
			GROUP BY p.package_name
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_installed_packages_one_active ON installed_packages(package_name) WHERE active = 1;
	`)
	if err != nil {
		return fmt.Errorf("failed to create active package index: %w", err)
	}
	return nil
}

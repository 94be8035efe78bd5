package db

import "database/sql"

// SchemaSQL is the complete schema for fresh installs.
// It reflects the state after all migrations.
//
// This is the single source of truth for the database schema. Tests load it via
// GetSchemaSQL() instead of declaring their own tables, so a repository query
// that references a missing column fails immediately with "no such column".
//
// When adding columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
const SchemaSQL = `
-- Versioned config values (governance state, pinned contract info)
CREATE TABLE IF NOT EXISTS config_values (
	config_key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	version INTEGER NOT NULL CHECK(version > 0),
	updated_at TEXT NOT NULL
);

-- Governance log (append-only audit trail)
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

-- Scenes imported from packages, overlaid on the declared registry
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

-- Installed package versions
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

CREATE UNIQUE INDEX IF NOT EXISTS idx_installed_packages_one_active ON installed_packages(package_name) WHERE active = 1;
`

// InitSchema creates the schema on a fresh database and migrates an existing one.
func InitSchema(database *sql.DB) error {
	var tableCount int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(database)
	}

	// Fresh install: create the modern schema directly and mark every
	// migration as applied.
	if _, err := database.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := createVersionTable(database); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}

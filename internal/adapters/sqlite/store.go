// Package sqlite contains the SQLite implementation of the governance store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/scenegov/internal/ports/secondary"
)

// Store implements secondary.Store with SQLite.
// Reads run in deferred read-only transactions, which see a WAL snapshot and
// never block the writer. Writes take the database write lock up front with
// BEGIN IMMEDIATE so a read-modify-write cannot interleave with another writer.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a new SQLite governance store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var _ secondary.Store = (*Store)(nil)

// querier is satisfied by both *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// View runs fn against a consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(tx secondary.ReadTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&txn{q: tx, now: s.now})
}

// Update runs fn inside a single write transaction. Nothing fn wrote is kept
// when it returns an error.
func (s *Store) Update(ctx context.Context, fn func(tx secondary.WriteTx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// The caller's context may already be cancelled.
			if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil && err == nil {
				err = fmt.Errorf("failed to roll back: %w", rbErr)
			}
		}
	}()

	if err := fn(&txn{q: conn, now: s.now}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return nil
}

// txn implements secondary.WriteTx over one transaction.
type txn struct {
	q   querier
	now func() time.Time
}

func (t *txn) timestamp() string {
	return t.now().UTC().Format(secondary.TimeLayout)
}

// GetConfig retrieves a config value by key.
func (t *txn) GetConfig(ctx context.Context, key string) (*secondary.ConfigRecord, error) {
	record := &secondary.ConfigRecord{}
	err := t.q.QueryRowContext(ctx,
		`SELECT config_key, value, version, updated_at FROM config_values WHERE config_key = ?`,
		key,
	).Scan(&record.Key, &record.Value, &record.Version, &record.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return record, nil
}

// ListConfig retrieves config values under a key prefix.
func (t *txn) ListConfig(ctx context.Context, prefix string) ([]*secondary.ConfigRecord, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT config_key, value, version, updated_at FROM config_values WHERE config_key LIKE ? ESCAPE '\' ORDER BY config_key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ConfigRecord
	for rows.Next() {
		record := &secondary.ConfigRecord{}
		if err := rows.Scan(&record.Key, &record.Value, &record.Version, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CompareAndSwapConfig writes a config value when its version still matches.
func (t *txn) CompareAndSwapConfig(ctx context.Context, key string, expectedVersion int64, value string) (int64, error) {
	now := t.timestamp()

	if expectedVersion == 0 {
		res, err := t.q.ExecContext(ctx,
			`INSERT INTO config_values (config_key, value, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(config_key) DO NOTHING`,
			key, value, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create config %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("config %s already exists: %w", key, secondary.ErrVersionConflict)
		}
		return 1, nil
	}

	res, err := t.q.ExecContext(ctx,
		`UPDATE config_values SET value = ?, version = version + 1, updated_at = ? WHERE config_key = ? AND version = ?`,
		value, now, key, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update config %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("config %s at version %d: %w", key, expectedVersion, secondary.ErrVersionConflict)
	}
	return expectedVersion + 1, nil
}

// ListScenes retrieves imported scenes.
func (t *txn) ListScenes(ctx context.Context, channel string) ([]*secondary.SceneRecord, error) {
	query := `SELECT channel, scene_key, route, payload, package_name, package_version, created_at FROM scenes WHERE 1=1`
	args := []any{}

	if channel != "" {
		query += " AND channel = ?"
		args = append(args, channel)
	}
	query += " ORDER BY channel, scene_key"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	var records []*secondary.SceneRecord
	for rows.Next() {
		r := &secondary.SceneRecord{}
		if err := rows.Scan(&r.Channel, &r.Key, &r.Route, &r.Payload, &r.PackageName, &r.PackageVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ReplacePackageScenes drops the scenes of every installed version of a
// package, whatever their channel, and inserts the new ones on channel.
func (t *txn) ReplacePackageScenes(ctx context.Context, packageName, channel string, scenes []*secondary.SceneRecord) error {
	if _, err := t.q.ExecContext(ctx,
		`DELETE FROM scenes WHERE package_name = ?`,
		packageName,
	); err != nil {
		return fmt.Errorf("failed to clear scenes of package %s: %w", packageName, err)
	}

	now := t.timestamp()
	for _, r := range scenes {
		createdAt := r.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO scenes (channel, scene_key, route, payload, package_name, package_version, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			channel,
			r.Key,
			r.Route,
			r.Payload,
			packageName,
			r.PackageVersion,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scene %s: %w", r.Key, err)
		}
	}
	return nil
}

// ActivatePackage upserts a package version as the only active one of its name.
func (t *txn) ActivatePackage(ctx context.Context, pkg *secondary.InstalledPackageRecord) error {
	keys, err := json.Marshal(nonNil(pkg.SceneKeys))
	if err != nil {
		return fmt.Errorf("failed to encode scene keys: %w", err)
	}
	installedAt := pkg.InstalledAt
	if installedAt == "" {
		installedAt = t.timestamp()
	}

	// Deactivate first so the one-active index never sees two active rows.
	if _, err := t.q.ExecContext(ctx,
		`UPDATE installed_packages SET active = 0 WHERE package_name = ? AND installed_version <> ? AND active = 1`,
		pkg.PackageName, pkg.InstalledVersion,
	); err != nil {
		return fmt.Errorf("failed to deactivate package %s: %w", pkg.PackageName, err)
	}

	_, err = t.q.ExecContext(ctx,
		`INSERT INTO installed_packages (package_name, installed_version, checksum, scene_channel, scene_keys, active, installed_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(package_name, installed_version) DO UPDATE SET
			checksum = excluded.checksum,
			scene_channel = excluded.scene_channel,
			scene_keys = excluded.scene_keys,
			active = 1,
			installed_at = excluded.installed_at`,
		pkg.PackageName,
		pkg.InstalledVersion,
		pkg.Checksum,
		pkg.SceneChannel,
		string(keys),
		installedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to activate package %s-%s: %w", pkg.PackageName, pkg.InstalledVersion, err)
	}
	pkg.Active = true
	pkg.InstalledAt = installedAt
	return nil
}

// ListPackages retrieves installed package rows matching the given filters.
func (t *txn) ListPackages(ctx context.Context, filters secondary.PackageFilters) ([]*secondary.InstalledPackageRecord, error) {
	query := `SELECT package_name, installed_version, checksum, scene_channel, scene_keys, active, installed_at FROM installed_packages WHERE 1=1`
	args := []any{}

	if filters.PackageName != "" {
		query += " AND package_name = ?"
		args = append(args, filters.PackageName)
	}
	if filters.ActiveOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY package_name, installed_version"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var records []*secondary.InstalledPackageRecord
	for rows.Next() {
		var (
			r      = &secondary.InstalledPackageRecord{}
			keys   string
			active int
		)
		if err := rows.Scan(&r.PackageName, &r.InstalledVersion, &r.Checksum, &r.SceneChannel, &keys, &active, &r.InstalledAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		if err := json.Unmarshal([]byte(keys), &r.SceneKeys); err != nil {
			return nil, fmt.Errorf("failed to decode scene keys of %s: %w", r.PackageName, err)
		}
		r.Active = active == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// AppendLog persists a new governance log entry.
func (t *txn) AppendLog(ctx context.Context, entry *secondary.GovernanceLogRecord) error {
	if entry.CreatedAt == "" {
		entry.CreatedAt = t.timestamp()
	}
	payload := entry.Payload
	if payload == "" {
		payload = "{}"
	}
	var companyID sql.NullInt64
	if entry.CompanyID > 0 {
		companyID = sql.NullInt64{Int64: entry.CompanyID, Valid: true}
	}

	res, err := t.q.ExecContext(ctx,
		`INSERT INTO governance_logs (action, trace_id, scope, company_id, from_channel, to_channel, from_ref, to_ref, reason, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Action,
		entry.TraceID,
		entry.Scope,
		companyID,
		nullString(entry.FromChannel),
		nullString(entry.ToChannel),
		nullString(entry.FromRef),
		nullString(entry.ToRef),
		nullString(entry.Reason),
		payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append governance log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read governance log id: %w", err)
	}
	entry.ID = id
	entry.Payload = payload
	return nil
}

// ListLogs retrieves governance log entries matching the given filters, newest first.
func (t *txn) ListLogs(ctx context.Context, filters secondary.GovernanceLogFilters) ([]*secondary.GovernanceLogRecord, error) {
	query := `SELECT id, action, trace_id, scope, company_id, from_channel, to_channel, from_ref, to_ref, reason, payload, created_at FROM governance_logs WHERE 1=1`
	args := []any{}

	if filters.Scope != "" {
		query += " AND scope = ?"
		args = append(args, filters.Scope)
	}
	if len(filters.Scopes) > 0 {
		query += " AND scope IN (?" + strings.Repeat(", ?", len(filters.Scopes)-1) + ")"
		for _, sc := range filters.Scopes {
			args = append(args, sc)
		}
	}
	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}
	if filters.TraceID != "" {
		query += " AND trace_id = ?"
		args = append(args, filters.TraceID)
	}
	if filters.Since != "" {
		query += " AND created_at >= ?"
		args = append(args, filters.Since)
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list governance logs: %w", err)
	}
	defer rows.Close()

	var records []*secondary.GovernanceLogRecord
	for rows.Next() {
		var (
			r           = &secondary.GovernanceLogRecord{}
			companyID   sql.NullInt64
			fromChannel sql.NullString
			toChannel   sql.NullString
			fromRef     sql.NullString
			toRef       sql.NullString
			reason      sql.NullString
		)
		err := rows.Scan(&r.ID,
			&r.Action,
			&r.TraceID,
			&r.Scope,
			&companyID,
			&fromChannel,
			&toChannel,
			&fromRef,
			&toRef,
			&reason,
			&r.Payload,
			&r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan governance log: %w", err)
		}
		r.CompanyID = companyID.Int64
		r.FromChannel = fromChannel.String
		r.ToChannel = toChannel.String
		r.FromRef = fromRef.String
		r.ToRef = toRef.String
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountLogs returns the number of governance log entries.
func (t *txn) CountLogs(ctx context.Context) (int, error) {
	var n int
	if err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM governance_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count governance logs: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

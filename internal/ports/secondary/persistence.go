// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by CompareAndSwapConfig when the stored
// version differs from the expected one.
var ErrVersionConflict = errors.New("config version conflict")

// TimeLayout is the fixed-width UTC timestamp layout of stored times.
// Fixed width keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Store defines the secondary port for the persisted governance store.
// View runs fn against a consistent snapshot and never blocks writers.
// Update runs fn inside a single atomic read-modify-write transaction; when fn
// returns an error nothing it wrote is kept.
type Store interface {
	View(ctx context.Context, fn func(tx ReadTx) error) error
	Update(ctx context.Context, fn func(tx WriteTx) error) error
}

// ReadTx is the read side of a store transaction.
type ReadTx interface {
	// GetConfig returns a config value, or nil when the key was never written.
	GetConfig(ctx context.Context, key string) (*ConfigRecord, error)

	// ListConfig returns config values whose key starts with prefix, ordered by key.
	ListConfig(ctx context.Context, prefix string) ([]*ConfigRecord, error)

	// ListScenes returns imported scenes, ordered by channel then key.
	// An empty channel lists every channel.
	ListScenes(ctx context.Context, channel string) ([]*SceneRecord, error)

	// ListPackages returns installed package rows ordered by name then version.
	ListPackages(ctx context.Context, filters PackageFilters) ([]*InstalledPackageRecord, error)

	// ListLogs returns governance log entries, newest first.
	ListLogs(ctx context.Context, filters GovernanceLogFilters) ([]*GovernanceLogRecord, error)

	// CountLogs returns the number of governance log entries.
	CountLogs(ctx context.Context) (int, error)
}

// WriteTx is the write side of a store transaction.
type WriteTx interface {
	ReadTx

	// CompareAndSwapConfig writes value when the stored version equals
	// expectedVersion (0 means the key must not exist yet) and returns the new version.
	CompareAndSwapConfig(ctx context.Context, key string, expectedVersion int64, value string) (int64, error)

	// ReplacePackageScenes removes every scene previously imported by packageName,
	// on any channel, and inserts scenes on channel.
	ReplacePackageScenes(ctx context.Context, packageName, channel string, scenes []*SceneRecord) error

	// ActivatePackage upserts an installed package row as active and
	// deactivates every other version of the same package.
	ActivatePackage(ctx context.Context, pkg *InstalledPackageRecord) error

	// AppendLog appends a governance log entry and fills in its ID.
	AppendLog(ctx context.Context, entry *GovernanceLogRecord) error
}

// ConfigRecord is a versioned config value as stored in persistence.
type ConfigRecord struct {
	Key       string
	Value     string
	Version   int64
	UpdatedAt string
}

// SceneRecord is an imported scene as stored in persistence.
type SceneRecord struct {
	Channel        string
	Key            string
	Route          string
	Payload        string // canonical scene JSON
	PackageName    string
	PackageVersion string
	CreatedAt      string
}

// InstalledPackageRecord is an installed package version as stored in persistence.
type InstalledPackageRecord struct {
	PackageName      string
	InstalledVersion string
	Checksum         string
	SceneChannel     string
	SceneKeys        []string
	Active           bool
	InstalledAt      string
}

// PackageFilters contains filter options for querying installed packages.
type PackageFilters struct {
	PackageName string
	ActiveOnly  bool
}

// GovernanceLogRecord is an append-only governance log entry as stored in persistence.
type GovernanceLogRecord struct {
	ID          int64
	Action      string
	TraceID     string
	Scope       string
	CompanyID   int64
	FromChannel string
	ToChannel   string
	FromRef     string
	ToRef       string
	Reason      string
	Payload     string // JSON object
	CreatedAt   string // TimeLayout; filled by AppendLog when empty
}

// GovernanceLogFilters contains filter options for querying the governance log.
type GovernanceLogFilters struct {
	Scope   string
	Scopes  []string // any of; empty for no restriction
	Action  string
	TraceID string
	Since   string // TimeLayout lower bound, inclusive
	Limit   int
}

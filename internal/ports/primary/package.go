package primary

import (
	"context"

	"github.com/example/scenegov/internal/core/scenepkg"
)

// PackageService defines the primary port for scene package export and import.
type PackageService interface {
	// Export builds a package from a channel's effective scenes and writes its artifact.
	Export(ctx context.Context, req ExportPackageRequest) (*ExportPackageResponse, error)

	// DryRunImport computes the import report without writing anything.
	DryRunImport(ctx context.Context, req ImportPackageRequest) (*ImportReport, error)

	// Import applies a package to the scene overlay of its channel.
	Import(ctx context.Context, req ImportPackageRequest) (*ImportReport, error)

	// Installed lists installed package versions.
	Installed(ctx context.Context, filters InstalledFilters) ([]*InstalledPackage, error)
}

// ExportPackageRequest contains parameters for exporting a package.
type ExportPackageRequest struct {
	PackageName    string `json:"package_name" validate:"required"`
	PackageVersion string `json:"package_version" validate:"required"`
	SceneChannel   string `json:"scene_channel" validate:"required,oneof=stable beta dev"`
	Reason         string `json:"reason" validate:"required"`
	TraceID        string `json:"trace_id"`
}

// ExportPackageResponse carries the exported package.
type ExportPackageResponse struct {
	TraceID  string           `json:"trace_id"`
	Ref      string           `json:"ref"`
	Location string           `json:"location"`
	Package  scenepkg.Package `json:"package"`
	Entry    *LogEntry        `json:"log_entry,omitempty"`
}

// ImportPackageRequest names a package either inline or by artifact ref.
// Reason is required by Import; a dry run writes nothing and may omit it.
type ImportPackageRequest struct {
	Package  *scenepkg.Package `json:"package"`
	Ref      string            `json:"ref"`
	Strategy string            `json:"strategy"`
	Reason   string            `json:"reason" validate:"required"`
	TraceID  string            `json:"trace_id"`
}

// CriticalRegression is a critical resolve error the import would introduce.
type CriticalRegression struct {
	SceneKey string `json:"scene_key"`
	Code     string `json:"code"`
	Ref      string `json:"ref,omitempty"`
}

// ImportReport is returned by both dry-run and real imports.
type ImportReport struct {
	DryRun              bool                 `json:"dry_run"`
	TraceID             string               `json:"trace_id"`
	Plan                scenepkg.Plan        `json:"report"`
	Summary             ImportSummary        `json:"summary"`
	ImportedSceneKeys   []string             `json:"imported_scene_keys"`
	CriticalRegressions []CriticalRegression `json:"critical_regressions"`
	FingerprintBefore   string               `json:"fingerprint_before"`
	FingerprintAfter    string               `json:"fingerprint_after"`
	AlreadyInstalled    bool                 `json:"already_installed"`
	Installed           *InstalledPackage    `json:"installed,omitempty"`
	Entry               *LogEntry            `json:"log_entry,omitempty"`
	Health              *Evaluation          `json:"-"`
}

// ImportSummary merges plan counts with what the import applied.
type ImportSummary struct {
	scenepkg.Summary
	ImportedCount int `json:"imported_count"`
}

// InstalledPackage is one installed package version at the port boundary.
type InstalledPackage struct {
	PackageName      string   `json:"package_name"`
	InstalledVersion string   `json:"installed_version"`
	Checksum         string   `json:"checksum"`
	SceneChannel     string   `json:"scene_channel"`
	SceneKeys        []string `json:"scene_keys"`
	Active           bool     `json:"active"`
	InstalledAt      string   `json:"installed_at"`
}

// InstalledFilters contains filter options for listing installed packages.
type InstalledFilters struct {
	PackageName string
	ActiveOnly  bool
}

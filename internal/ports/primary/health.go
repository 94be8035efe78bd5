package primary

import (
	"context"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/health"
	"github.com/example/scenegov/internal/core/resolver"
)

// HealthService defines the primary port for the health view.
type HealthService interface {
	// Health runs one evaluation for the scope and projects it.
	Health(ctx context.Context, req HealthRequest) (*HealthResponse, error)
}

// HealthRequest contains the raw health query parameters.
type HealthRequest struct {
	CompanyID int64  `json:"company_id"`
	Mode      string `json:"mode"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Since     string `json:"since"`
	TraceID   string `json:"trace_id"`
}

// HealthDetails are the paginated detail arrays of a full health view.
type HealthDetails struct {
	ResolveErrors     []diagnostics.ResolveError `json:"resolve_errors"`
	Drift             []diagnostics.DriftEntry   `json:"drift"`
	Debt              []diagnostics.DebtEntry    `json:"debt"`
	MissingDebt       []diagnostics.DebtEntry    `json:"missing_debt"`
	NormalizeWarnings []resolver.Warning         `json:"normalize_warnings"`
	RecentActions     []*LogEntry                `json:"recent_actions"`
}

// HealthResponse is the health view of one scope.
type HealthResponse struct {
	CompanyID      int64              `json:"company_id"`
	SceneChannel   string             `json:"scene_channel"`
	RollbackActive bool               `json:"rollback_active"`
	SceneVersion   string             `json:"scene_version"`
	SchemaVersion  string             `json:"schema_version"`
	ContractRef    string             `json:"contract_ref"`
	Summary        health.Summary     `json:"summary"`
	Details        *HealthDetails     `json:"details,omitempty"`
	Query          health.Query       `json:"query"`
	LastUpdatedAt  string             `json:"last_updated_at"`
	TraceID        string             `json:"trace_id"`
	AutoDegrade    AutoDegradeOutcome `json:"auto_degrade"`
}

package primary

import (
	"context"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
)

// DiagnosticsService defines the primary port for scene resolution and diagnostics.
type DiagnosticsService interface {
	// Evaluate runs one full pass: resolve, diagnose, then the auto-degrade step.
	Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error)

	// AppInit returns the scenes a client should render plus their diagnostics.
	AppInit(ctx context.Context, req AppInitRequest) (*AppInitResponse, error)
}

// EvaluateRequest contains parameters for a diagnostics pass.
type EvaluateRequest struct {
	CompanyID    int64
	SceneChannel string // optional override, ignored while rolled back
	UsePinned    bool
	TraceID      string
}

// AutoDegradeOutcome reports what the auto-degrade step did during an evaluation.
type AutoDegradeOutcome struct {
	Enabled     bool      `json:"enabled"`
	Triggered   bool      `json:"triggered"`
	Skip        string    `json:"skip,omitempty"`
	ReasonCodes []string  `json:"reason_codes,omitempty"`
	Entry       *LogEntry `json:"log_entry,omitempty"`
}

// Evaluation is the result of one diagnostics pass.
type Evaluation struct {
	TraceID           string              `json:"trace_id"`
	State             ChannelState        `json:"state"`
	SceneChannel      string              `json:"scene_channel"`
	ContractRef       string              `json:"contract_ref"`
	SchemaVersion     string              `json:"schema_version"`
	SceneVersion      string              `json:"scene_version"`
	Checksum          string              `json:"checksum"`
	Scenes            []scene.Scene       `json:"scenes"`
	Report            diagnostics.Report  `json:"report"`
	NormalizeWarnings []resolver.Warning  `json:"normalize_warnings"`
	Coverage          resolver.Coverage   `json:"coverage"`
	AutoDegrade       AutoDegradeOutcome  `json:"auto_degrade"`
	EvaluatedAt       string              `json:"evaluated_at"`
	Bindings          map[string]string   `json:"bindings,omitempty"`
	Exempted          []resolver.Exempted `json:"exempted,omitempty"`
}

// AppInitRequest contains the scene parameters of a client bootstrap.
type AppInitRequest struct {
	CompanyID      int64  `json:"company_id"`
	SceneChannel   string `json:"scene_channel"`
	SceneUsePinned bool   `json:"scene_use_pinned"`
	TraceID        string `json:"trace_id"`
}

// SceneDiagnostics is the diagnostics block of an app.init response.
type SceneDiagnostics struct {
	SchemaVersion     string                     `json:"schema_version"`
	SceneVersion      string                     `json:"scene_version"`
	ResolveErrors     []diagnostics.ResolveError `json:"resolve_errors"`
	Drift             []diagnostics.DriftEntry   `json:"drift"`
	NormalizeWarnings []resolver.Warning         `json:"normalize_warnings"`
	Coverage          resolver.Coverage          `json:"coverage"`
}

// AppInitResponse is the scene part of a client bootstrap.
type AppInitResponse struct {
	TraceID          string           `json:"trace_id"`
	SceneChannel     string           `json:"scene_channel"`
	RollbackActive   bool             `json:"rollback_active"`
	ContractRef      string           `json:"contract_ref"`
	Scenes           []scene.Scene    `json:"scenes"`
	SceneDiagnostics SceneDiagnostics `json:"scene_diagnostics"`
}

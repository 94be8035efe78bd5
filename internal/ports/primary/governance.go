// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces the CLI and the intent transport call.
package primary

import (
	"context"

	"github.com/example/scenegov/internal/core/scenepkg"
)

// GovernanceService defines the primary port for channel and rollback governance.
type GovernanceService interface {
	// GetState returns the effective channel state of a scope. Zero company means global.
	GetState(ctx context.Context, companyID int64) (*ChannelState, error)

	// SetChannel records a channel selection for a scope.
	SetChannel(ctx context.Context, req SetChannelRequest) (*GovernanceActionResponse, error)

	// Rollback pins a scope to the stable snapshot. Calling it again is a no-op beyond logging.
	Rollback(ctx context.Context, req RollbackRequest) (*GovernanceActionResponse, error)

	// ClearRollback releases the pin and restores the requested channel.
	ClearRollback(ctx context.Context, req RollbackRequest) (*GovernanceActionResponse, error)

	// PinStable snapshots the current stable contract into the pinned artifact.
	PinStable(ctx context.Context, req PinStableRequest) (*PinStableResponse, error)

	// ExportContract writes the contract of a channel without changing governance state.
	ExportContract(ctx context.Context, req ExportContractRequest) (*ExportContractResponse, error)
}

// ChannelState is the governance state of a scope at the port boundary.
type ChannelState struct {
	CompanyID        int64  `json:"company_id,omitempty"`
	Scope            string `json:"scope"`
	Channel          string `json:"channel"`
	RequestedChannel string `json:"requested_channel"`
	RollbackActive   bool   `json:"rollback_active"`
	RollbackRef      string `json:"rollback_ref,omitempty"`
	ContractRef      string `json:"contract_ref"`
}

// SetChannelRequest contains parameters for selecting a channel.
type SetChannelRequest struct {
	CompanyID int64  `json:"company_id"`
	Channel   string `json:"channel"`
	Reason    string `json:"reason"`
	TraceID   string `json:"trace_id"`
}

// RollbackRequest contains parameters for rollback and rollback clear.
type RollbackRequest struct {
	CompanyID int64  `json:"company_id"`
	Reason    string `json:"reason"`
	TraceID   string `json:"trace_id"`
}

// GovernanceActionResponse is returned by state-changing governance actions.
type GovernanceActionResponse struct {
	Action      string       `json:"action"`
	TraceID     string       `json:"trace_id"`
	Scope       string       `json:"scope"`
	FromChannel string       `json:"from_channel"`
	ToChannel   string       `json:"to_channel"`
	Changed     bool         `json:"changed"`
	Deferred    bool         `json:"deferred"`
	State       ChannelState `json:"state"`
	Entry       *LogEntry    `json:"log_entry"`
}

// PinStableRequest contains parameters for pinning the stable contract.
type PinStableRequest struct {
	Reason  string `json:"reason"`
	TraceID string `json:"trace_id"`
}

// PinStableResponse describes the pinned artifact.
type PinStableResponse struct {
	Action       string    `json:"action"`
	TraceID      string    `json:"trace_id"`
	Ref          string    `json:"ref"`
	Location     string    `json:"location"`
	Checksum     string    `json:"checksum"`
	SceneVersion string    `json:"scene_version"`
	SceneCount   int       `json:"scene_count"`
	Entry        *LogEntry `json:"log_entry"`
}

// ExportContractRequest contains parameters for exporting a channel contract.
type ExportContractRequest struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
	TraceID string `json:"trace_id"`
}

// ExportContractResponse carries the exported contract artifact.
type ExportContractResponse struct {
	Action   string            `json:"action"`
	TraceID  string            `json:"trace_id"`
	Ref      string            `json:"ref"`
	Location string            `json:"location"`
	Contract scenepkg.Contract `json:"contract"`
	Entry    *LogEntry         `json:"log_entry"`
}

// Package governance contains the pure business logic for channel selection
// and rollback pinning.
// This is part of the Functional Core - no I/O, only pure functions.
package governance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/scenegov/internal/core/scene"
)

// ScopeGlobal is the scope used when no company is given.
const ScopeGlobal = "global"

// PinnedRef is the artifact reference of the pinned stable contract.
const PinnedRef = "stable/PINNED.json"

// Action names recorded in the governance log.
const (
	ActionSetChannel           = "set_channel"
	ActionRollback             = "rollback"
	ActionRollbackCleared      = "rollback_cleared"
	ActionPinStable            = "pin_stable"
	ActionExportContract       = "export_contract"
	ActionAutoDegradeTriggered = "auto_degrade_triggered"
	ActionAutoDegradeNotify    = "auto_degrade_notify"
	ActionPackageImport        = "package_import"
	ActionPackageExport        = "package_export"
)

// Actions lists every action the governance log accepts.
var Actions = []string{
	ActionSetChannel,
	ActionRollback,
	ActionRollbackCleared,
	ActionPinStable,
	ActionExportContract,
	ActionAutoDegradeTriggered,
	ActionAutoDegradeNotify,
	ActionPackageImport,
	ActionPackageExport,
}

// LatestRef returns the artifact reference of the latest contract export for a channel.
func LatestRef(c scene.Channel) string {
	return string(c) + "/LATEST.json"
}

// ScopeFor returns the state scope for a company. Zero means global.
func ScopeFor(companyID int64) string {
	if companyID <= 0 {
		return ScopeGlobal
	}
	return "company:" + strconv.FormatInt(companyID, 10)
}

// CompanyFromScope is the inverse of ScopeFor.
func CompanyFromScope(scope string) (int64, error) {
	if scope == ScopeGlobal {
		return 0, nil
	}
	raw, ok := strings.CutPrefix(scope, "company:")
	if !ok {
		return 0, fmt.Errorf("unknown scope %q", scope)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid company scope %q", scope)
	}
	return id, nil
}

// ChannelState is the governance state of one scope.
// Channel is the effective channel; RequestedChannel is what operators last asked for.
type ChannelState struct {
	Scope            string        `json:"scope"`
	Channel          scene.Channel `json:"channel"`
	RequestedChannel scene.Channel `json:"requested_channel"`
	RollbackActive   bool          `json:"rollback_active"`
	RollbackRef      string        `json:"rollback_ref,omitempty"`
	ContractRef      string        `json:"contract_ref"`
}

// DefaultState returns the state of a scope that was never written.
func DefaultState(scope string) ChannelState {
	return ChannelState{
		Scope:            scope,
		Channel:          scene.ChannelStable,
		RequestedChannel: scene.ChannelStable,
		ContractRef:      LatestRef(scene.ChannelStable),
	}
}

// Effective folds a scope's own state over the global one.
// A scope without its own state inherits the global state. A global rollback
// forces every scope onto the pinned contract.
func Effective(global ChannelState, scoped *ChannelState, scope string) ChannelState {
	out := global
	if scoped != nil {
		out = *scoped
	}
	out.Scope = scope
	if global.RollbackActive && !out.RollbackActive {
		out = forceRollback(out)
	}
	return out
}

// Consistent reports whether s honours the rollback invariant.
func (s ChannelState) Consistent() bool {
	if !s.RollbackActive {
		return s.RollbackRef == ""
	}
	return s.Channel == scene.ChannelStable && s.RollbackRef == PinnedRef && s.ContractRef == PinnedRef
}

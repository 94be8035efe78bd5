package governance

import (
	"fmt"
	"strings"

	"github.com/example/scenegov/internal/core/scene"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// SetChannelContext provides context for channel selection guards.
type SetChannelContext struct {
	Channel string
	Reason  string
}

// ReasonContext provides context for guards that only need an operator reason.
type ReasonContext struct {
	Action string
	Reason string
}

// PinStableContext provides context for pin guards.
type PinStableContext struct {
	Reason           string
	StableSceneCount int
}

// ExportContractContext provides context for contract export guards.
type ExportContractContext struct {
	Channel string
	Reason  string
}

// CanSetChannel evaluates whether a channel change request is well formed.
// Rules:
// - Reason must be non-empty
// - Channel must be stable, beta or dev
func CanSetChannel(ctx SetChannelContext) GuardResult {
	if r := requireReason(ActionSetChannel, ctx.Reason); !r.Allowed {
		return r
	}
	if _, ok := scene.ParseChannel(ctx.Channel); !ok {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown channel %q: must be one of stable, beta, dev", ctx.Channel),
		}
	}
	return GuardResult{Allowed: true}
}

// CanRollback evaluates whether a rollback or rollback clear may run.
// Rules:
// - Reason must be non-empty
func CanRollback(ctx ReasonContext) GuardResult {
	action := ctx.Action
	if action == "" {
		action = ActionRollback
	}
	return requireReason(action, ctx.Reason)
}

// CanPinStable evaluates whether the stable contract can be pinned.
// Rules:
// - Reason must be non-empty
// - The stable contract must contain at least one scene
func CanPinStable(ctx PinStableContext) GuardResult {
	if r := requireReason(ActionPinStable, ctx.Reason); !r.Allowed {
		return r
	}
	if ctx.StableSceneCount == 0 {
		return GuardResult{
			Allowed: false,
			Reason:  "cannot pin an empty stable contract",
		}
	}
	return GuardResult{Allowed: true}
}

// CanExportContract evaluates whether a contract export request is well formed.
// Rules:
// - Reason must be non-empty
// - Channel must be stable, beta or dev
func CanExportContract(ctx ExportContractContext) GuardResult {
	if r := requireReason(ActionExportContract, ctx.Reason); !r.Allowed {
		return r
	}
	if _, ok := scene.ParseChannel(ctx.Channel); !ok {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown channel %q: must be one of stable, beta, dev", ctx.Channel),
		}
	}
	return GuardResult{Allowed: true}
}

func requireReason(action, reason string) GuardResult {
	if strings.TrimSpace(reason) == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("%s requires a non-empty reason", action),
		}
	}
	return GuardResult{Allowed: true}
}

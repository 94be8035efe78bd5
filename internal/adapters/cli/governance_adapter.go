package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/scenegov/internal/ports/primary"
)

// GovernanceAdapter is a thin adapter that translates CLI operations to GovernanceService calls.
// It depends only on the primary interfaces, enabling easy testing with mocks.
type GovernanceAdapter struct {
	service primary.GovernanceService
	logs    primary.LogService
	out     io.Writer
}

// NewGovernanceAdapter creates a new GovernanceAdapter with the given services.
func NewGovernanceAdapter(service primary.GovernanceService, logs primary.LogService, out io.Writer) *GovernanceAdapter {
	return &GovernanceAdapter{
		service: service,
		logs:    logs,
		out:     out,
	}
}

// State displays the effective channel state of a scope.
func (a *GovernanceAdapter) State(ctx context.Context, companyID int64) (*primary.ChannelState, error) {
	state, err := a.service.GetState(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get governance state: %w", err)
	}

	fmt.Fprintf(a.out, "\nScope:     %s\n", state.Scope)
	fmt.Fprintf(a.out, "Channel:   %s\n", state.Channel)
	fmt.Fprintf(a.out, "Requested: %s\n", state.RequestedChannel)
	if state.RollbackActive {
		fmt.Fprintf(a.out, "Rollback:  %s (%s)\n", color.New(color.FgRed).Sprint("ACTIVE"), state.RollbackRef)
	} else {
		fmt.Fprintln(a.out, "Rollback:  inactive")
	}
	fmt.Fprintf(a.out, "Contract:  %s\n", state.ContractRef)
	fmt.Fprintln(a.out)

	return state, nil
}

// SetChannel records a channel selection for a scope.
func (a *GovernanceAdapter) SetChannel(ctx context.Context, req primary.SetChannelRequest) (*primary.GovernanceActionResponse, error) {
	resp, err := a.service.SetChannel(ctx, req)
	if err != nil {
		return nil, err
	}
	a.printAction(resp)
	return resp, nil
}

// Rollback pins a scope to the stable snapshot.
func (a *GovernanceAdapter) Rollback(ctx context.Context, req primary.RollbackRequest) (*primary.GovernanceActionResponse, error) {
	resp, err := a.service.Rollback(ctx, req)
	if err != nil {
		return nil, err
	}
	a.printAction(resp)
	return resp, nil
}

// ClearRollback releases a scope's pin.
func (a *GovernanceAdapter) ClearRollback(ctx context.Context, req primary.RollbackRequest) (*primary.GovernanceActionResponse, error) {
	resp, err := a.service.ClearRollback(ctx, req)
	if err != nil {
		return nil, err
	}
	a.printAction(resp)
	return resp, nil
}

func (a *GovernanceAdapter) printAction(resp *primary.GovernanceActionResponse) {
	switch {
	case resp.Deferred:
		fmt.Fprintf(a.out, "%s %s recorded for %s, deferred while rollback is active\n",
			color.New(color.FgYellow).Sprint("!"), resp.Action, resp.Scope)
	case resp.Changed:
		fmt.Fprintf(a.out, "✓ %s applied to %s\n", resp.Action, resp.Scope)
		fmt.Fprintf(a.out, "  %s → %s\n", resp.FromChannel, resp.ToChannel)
	default:
		fmt.Fprintf(a.out, "✓ %s recorded for %s (no change, serving %s)\n", resp.Action, resp.Scope, resp.ToChannel)
	}
	fmt.Fprintf(a.out, "  trace: %s\n", resp.TraceID)
}

// PinStable snapshots the stable contract.
func (a *GovernanceAdapter) PinStable(ctx context.Context, req primary.PinStableRequest) (*primary.PinStableResponse, error) {
	resp, err := a.service.PinStable(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Pinned stable contract %s (%d scenes)\n", resp.SceneVersion, resp.SceneCount)
	fmt.Fprintf(a.out, "  ref:      %s\n", resp.Ref)
	fmt.Fprintf(a.out, "  location: %s\n", resp.Location)
	fmt.Fprintf(a.out, "  checksum: %s\n", resp.Checksum)
	return resp, nil
}

// ExportContract writes a channel's contract artifact.
func (a *GovernanceAdapter) ExportContract(ctx context.Context, req primary.ExportContractRequest) (*primary.ExportContractResponse, error) {
	resp, err := a.service.ExportContract(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Exported %s contract %s (%d scenes)\n",
		resp.Contract.Channel, resp.Contract.SceneVersion, len(resp.Contract.Scenes))
	fmt.Fprintf(a.out, "  ref:      %s\n", resp.Ref)
	fmt.Fprintf(a.out, "  location: %s\n", resp.Location)
	return resp, nil
}

// Log lists governance log entries, newest first.
func (a *GovernanceAdapter) Log(ctx context.Context, filters primary.LogFilters) ([]*primary.LogEntry, error) {
	entries, err := a.logs.ListLogs(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No log entries found.")
		return entries, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tSCOPE\tFROM\tTO\tTRACE\tREASON")
	fmt.Fprintln(w, "----\t------\t-----\t----\t--\t-----\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt,
			e.Action,
			e.Scope,
			dash(e.FromChannel),
			dash(e.ToChannel),
			e.TraceID,
			e.Reason,
		)
	}
	w.Flush()
	return entries, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

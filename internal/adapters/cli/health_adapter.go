package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/scenegov/internal/ports/primary"
)

// HealthAdapter renders health and app.init results.
type HealthAdapter struct {
	health      primary.HealthService
	diagnostics primary.DiagnosticsService
	out         io.Writer
}

// NewHealthAdapter creates a new HealthAdapter with the given services.
func NewHealthAdapter(health primary.HealthService, diagnostics primary.DiagnosticsService, out io.Writer) *HealthAdapter {
	return &HealthAdapter{
		health:      health,
		diagnostics: diagnostics,
		out:         out,
	}
}

// Health runs one evaluation and prints the health view.
func (a *HealthAdapter) Health(ctx context.Context, req primary.HealthRequest) (*primary.HealthResponse, error) {
	resp, err := a.health.Health(ctx, req)
	if err != nil {
		return nil, err
	}

	status := color.New(color.FgGreen).Sprint("HEALTHY")
	if !resp.Summary.Healthy {
		status = color.New(color.FgRed).Sprint("UNHEALTHY")
	}
	scope := "global"
	if resp.CompanyID != 0 {
		scope = fmt.Sprintf("company:%d", resp.CompanyID)
	}

	fmt.Fprintf(a.out, "\nScene health (%s): %s\n", scope, status)
	fmt.Fprintf(a.out, "Channel:  %s", resp.SceneChannel)
	if resp.RollbackActive {
		fmt.Fprint(a.out, color.New(color.FgYellow).Sprint(" [rollback]"))
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Version:  %s (schema %s)\n", resp.SceneVersion, resp.SchemaVersion)
	fmt.Fprintf(a.out, "Contract: %s\n", resp.ContractRef)
	fmt.Fprintf(a.out, "Trace:    %s\n", resp.TraceID)
	fmt.Fprintln(a.out)

	s := resp.Summary
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COUNT\tVALUE")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "critical resolve errors\t%d\n", s.CriticalResolveErrorsCount)
	fmt.Fprintf(w, "critical drift warnings\t%d\n", s.CriticalDriftWarnCount)
	fmt.Fprintf(w, "non-critical debt\t%d\n", s.NonCriticalDebtCount)
	fmt.Fprintf(w, "missing debt\t%d\n", s.MissingDebtCount)
	fmt.Fprintf(w, "normalize warnings\t%d\n", s.NormalizeWarningsCount)
	fmt.Fprintf(w, "resolve errors\t%d\n", s.ResolveErrorsCount)
	fmt.Fprintf(w, "drift\t%d\n", s.DriftCount)
	w.Flush()

	if ad := resp.AutoDegrade; ad.Triggered {
		fmt.Fprintf(a.out, "\n%s auto-degrade triggered: %v\n", color.New(color.FgRed).Sprint("!"), ad.ReasonCodes)
	}

	if resp.Details != nil {
		a.printDetails(resp.Details)
	}
	return resp, nil
}

func (a *HealthAdapter) printDetails(d *primary.HealthDetails) {
	if len(d.ResolveErrors) > 0 {
		fmt.Fprintln(a.out, "\nResolve errors:")
		for _, e := range d.ResolveErrors {
			fmt.Fprintf(a.out, "  [%s] %s %s %s\n", e.Severity, e.SceneKey, e.Code, e.Ref)
		}
	}
	if len(d.Drift) > 0 {
		fmt.Fprintln(a.out, "\nDrift:")
		for _, e := range d.Drift {
			fmt.Fprintf(a.out, "  [%s] %s %s %v\n", e.Severity, e.SceneKey, e.Kind, e.Fields)
		}
	}
	if len(d.MissingDebt) > 0 {
		fmt.Fprintln(a.out, "\nMissing debt:")
		for _, e := range d.MissingDebt {
			fmt.Fprintf(a.out, "  %s %s%s\n", e.SceneKey, e.Code, e.Kind)
		}
	}
	if len(d.NormalizeWarnings) > 0 {
		fmt.Fprintf(a.out, "\nNormalize warnings: %d\n", len(d.NormalizeWarnings))
	}
	if len(d.RecentActions) > 0 {
		fmt.Fprintln(a.out, "\nRecent actions:")
		for _, e := range d.RecentActions {
			fmt.Fprintf(a.out, "  %s %s %s\n", e.CreatedAt, e.Action, e.Scope)
		}
	}
}

// AppInit prints the scenes a client would render for a scope.
func (a *HealthAdapter) AppInit(ctx context.Context, req primary.AppInitRequest) (*primary.AppInitResponse, error) {
	resp, err := a.diagnostics.AppInit(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "\nChannel: %s (rollback: %t)\n", resp.SceneChannel, resp.RollbackActive)
	fmt.Fprintf(a.out, "Version: %s\n", resp.SceneDiagnostics.SceneVersion)
	fmt.Fprintln(a.out)

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tROUTE\tLAYOUT")
	fmt.Fprintln(w, "---\t-----\t------")
	for _, sc := range resp.Scenes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Key, sc.Route, sc.Layout.Kind)
	}
	w.Flush()

	if n := len(resp.SceneDiagnostics.ResolveErrors); n > 0 {
		fmt.Fprintf(a.out, "\n%s %d resolve errors\n", color.New(color.FgYellow).Sprint("!"), n)
	}
	return resp, nil
}

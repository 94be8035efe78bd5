package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ports/primary"
)

// PackageAdapter translates CLI package operations to PackageService calls.
type PackageAdapter struct {
	service primary.PackageService
	out     io.Writer
}

// NewPackageAdapter creates a new PackageAdapter with the given service.
func NewPackageAdapter(service primary.PackageService, out io.Writer) *PackageAdapter {
	return &PackageAdapter{
		service: service,
		out:     out,
	}
}

// Export builds and writes a package artifact.
func (a *PackageAdapter) Export(ctx context.Context, req primary.ExportPackageRequest) (*primary.ExportPackageResponse, error) {
	resp, err := a.service.Export(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Exported %s@%s from %s (%d scenes)\n",
		resp.Package.PackageName, resp.Package.PackageVersion, resp.Package.SceneChannel, len(resp.Package.Scenes))
	fmt.Fprintf(a.out, "  ref:      %s\n", resp.Ref)
	fmt.Fprintf(a.out, "  location: %s\n", resp.Location)
	fmt.Fprintf(a.out, "  checksum: %s\n", resp.Package.Checksum)
	return resp, nil
}

// DryRun prints the import plan without writing anything.
func (a *PackageAdapter) DryRun(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	report, err := a.service.DryRunImport(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(a.out, "Dry run (nothing written)")
	a.printReport(report)
	return report, nil
}

// Import applies a package.
func (a *PackageAdapter) Import(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	report, err := a.service.Import(ctx, req)
	if err != nil {
		return nil, err
	}

	if report.AlreadyInstalled {
		fmt.Fprintf(a.out, "✓ %s@%s already installed, nothing to do\n", report.Plan.PackageName, report.Plan.PackageVersion)
		return report, nil
	}
	fmt.Fprintf(a.out, "✓ Imported %s@%s into %s\n", report.Plan.PackageName, report.Plan.PackageVersion, report.Plan.SceneChannel)
	a.printReport(report)
	return report, nil
}

func (a *PackageAdapter) printReport(r *primary.ImportReport) {
	s := r.Summary
	fmt.Fprintf(a.out, "  package:   %s@%s (%s)\n", r.Plan.PackageName, r.Plan.PackageVersion, r.Plan.SceneChannel)
	fmt.Fprintf(a.out, "  strategy:  %s\n", dash(string(r.Plan.Strategy)))
	fmt.Fprintf(a.out, "  scenes:    %d (add %d, conflict %d, renamed %d, skipped %d, invalid %d)\n",
		s.SceneCount, s.AdditionsCount, s.ConflictsCount, s.RenamedCount, s.SkippedCount, s.InvalidCount)
	fmt.Fprintf(a.out, "  trace:     %s\n", r.TraceID)

	for _, c := range r.Plan.Conflicts {
		marker := color.New(color.FgRed).Sprint("✗")
		if c.Resolution != scenepkg.ResolutionUnresolved {
			marker = color.New(color.FgYellow).Sprint("!")
		}
		fmt.Fprintf(a.out, "  %s %s conflicts on %v with %v", marker, c.SceneKey, c.Fields, c.ExistingKeys)
		if c.ResolvedKey != "" {
			fmt.Fprintf(a.out, " → %s %s", c.ResolvedKey, c.ResolvedRoute)
		}
		fmt.Fprintln(a.out)
	}
	for _, reg := range r.CriticalRegressions {
		fmt.Fprintf(a.out, "  %s critical regression: %s %s\n", color.New(color.FgRed).Sprint("✗"), reg.SceneKey, reg.Code)
	}
}

// Installed lists installed package versions.
func (a *PackageAdapter) Installed(ctx context.Context, filters primary.InstalledFilters) ([]*primary.InstalledPackage, error) {
	pkgs, err := a.service.Installed(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	if len(pkgs) == 0 {
		fmt.Fprintln(a.out, "No packages installed.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Import a package:")
		fmt.Fprintln(a.out, "  scenegov package import --file my-pkg.json")
		return pkgs, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tVERSION\tCHANNEL\tSCENES\tACTIVE\tINSTALLED")
	fmt.Fprintln(w, "-------\t-------\t-------\t------\t------\t---------")
	for _, p := range pkgs {
		active := ""
		if p.Active {
			active = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.PackageName,
			p.InstalledVersion,
			p.SceneChannel,
			len(p.SceneKeys),
			active,
			p.InstalledAt,
		)
	}
	w.Flush()
	return pkgs, nil
}

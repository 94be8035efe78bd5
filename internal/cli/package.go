package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/wire"
)

// PackageCmd returns the package command with all subcommands attached.
func PackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "package",
		Aliases: []string{"pkg"},
		Short:   "Export and import scene packages",
		Long: `Move scenes between installations as checksummed packages.

Examples:
  scenegov package export crm 1.0.0 --channel beta
  scenegov package dry-run --file crm-1.0.0.json
  scenegov package import --ref packages/crm-1.0.0.json --strategy rename_on_conflict
  scenegov package installed --active`,
	}

	cmd.AddCommand(packageExportCmd())
	cmd.AddCommand(packageImportCmd("dry-run", "Show what an import would do without writing anything", true))
	cmd.AddCommand(packageImportCmd("import", "Import a package into its channel", false))
	cmd.AddCommand(packageInstalledCmd())
	return cmd
}

func packageExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [name] [version]",
		Short: "Export a channel's effective scenes as a package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			reason, traceID := actionFlags(cmd)

			_, err := wire.PackageAdapter().Export(NewContext(), primary.ExportPackageRequest{
				PackageName:    args[0],
				PackageVersion: args[1],
				SceneChannel:   channel,
				Reason:         reason,
				TraceID:        traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to export package: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("channel", "stable", "Channel to export")
	addActionFlags(cmd)
	return cmd
}

func packageImportCmd(use, short string, dryRun bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			ref, _ := cmd.Flags().GetString("ref")
			strategy, _ := cmd.Flags().GetString("strategy")
			reason, traceID := actionFlags(cmd)

			req := primary.ImportPackageRequest{
				Ref:      ref,
				Strategy: strategy,
				Reason:   reason,
				TraceID:  traceID,
			}
			if file != "" {
				pkg, err := readPackageFile(file)
				if err != nil {
					return err
				}
				req.Package = &pkg
			}

			adapter := wire.PackageAdapter()
			if dryRun {
				_, err := adapter.DryRun(NewContext(), req)
				return err
			}
			if _, err := adapter.Import(NewContext(), req); err != nil {
				return fmt.Errorf("failed to import package: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "Package file to import")
	cmd.Flags().String("ref", "", "Artifact ref of a previously exported package")
	cmd.Flags().String("strategy", "", "Conflict strategy: rename_on_conflict or skip_on_conflict")
	cmd.MarkFlagsOneRequired("file", "ref")
	cmd.MarkFlagsMutuallyExclusive("file", "ref")
	addActionFlags(cmd)
	return cmd
}

func readPackageFile(path string) (scenepkg.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenepkg.Package{}, fmt.Errorf("failed to read package file: %w", err)
	}
	return scenepkg.Decode(data)
}

func packageInstalledCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installed",
		Short: "List installed package versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			active, _ := cmd.Flags().GetBool("active")

			_, err := wire.PackageAdapter().Installed(NewContext(), primary.InstalledFilters{
				PackageName: name,
				ActiveOnly:  active,
			})
			return err
		},
	}
	cmd.Flags().String("name", "", "Filter by package name")
	cmd.Flags().Bool("active", false, "Only the active version of each package")
	return cmd
}

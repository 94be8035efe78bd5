package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/wire"
)

// HealthCmd returns the health command.
func HealthCmd() *cobra.Command {
	var (
		companyID int64
		mode      string
		limit     int
		offset    int
		since     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Evaluate scene health for a scope",
		Long: `Run one evaluation (resolve, diagnose, auto-degrade) and show the health view.

Examples:
  scenegov health                       # Global summary
  scenegov health --company 7 --full    # Company view with detail arrays
  scenegov health --full --limit 20 --offset 20
  scenegov health --json                # Machine-readable output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if full, _ := cmd.Flags().GetBool("full"); full {
				mode = "full"
			}
			req := primary.HealthRequest{
				CompanyID: companyID,
				Mode:      mode,
				Limit:     limit,
				Offset:    offset,
				Since:     since,
			}

			if asJSON {
				resp, err := wire.HealthService().Health(NewContext(), req)
				if err != nil {
					return fmt.Errorf("failed to evaluate health: %w", err)
				}
				return printJSON(resp)
			}

			if _, err := wire.HealthAdapter().Health(NewContext(), req); err != nil {
				return fmt.Errorf("failed to evaluate health: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "Company ID (0 for global)")
	cmd.Flags().StringVar(&mode, "mode", "summary", "View mode: summary or full")
	cmd.Flags().Bool("full", false, "Shorthand for --mode full")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size of detail arrays")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into detail arrays")
	cmd.Flags().StringVar(&since, "since", "", "Only recent actions at or after this RFC3339 time")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

// AppInitCmd returns the app-init command.
func AppInitCmd() *cobra.Command {
	var (
		companyID int64
		channel   string
		usePinned bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "app-init",
		Short: "Show the scenes a client would receive at bootstrap",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := primary.AppInitRequest{
				CompanyID:      companyID,
				SceneChannel:   channel,
				SceneUsePinned: usePinned,
			}

			if asJSON {
				resp, err := wire.DiagnosticsService().AppInit(NewContext(), req)
				if err != nil {
					return fmt.Errorf("failed to run app.init: %w", err)
				}
				return printJSON(resp)
			}

			if _, err := wire.HealthAdapter().AppInit(NewContext(), req); err != nil {
				return fmt.Errorf("failed to run app.init: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "Company ID (0 for global)")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel override (ignored while rolled back)")
	cmd.Flags().BoolVar(&usePinned, "pinned", false, "Preview the pinned stable contract")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/wire"
)

// GovernanceCmd returns the governance command with all subcommands attached.
func GovernanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "governance",
		Aliases: []string{"gov"},
		Short:   "Select channels, roll back and pin scene contracts",
		Long: `Manage which scene channel each scope serves.

Every action is recorded in the governance log. A scope is either global
(--company 0, the default) or a single company.

Examples:
  scenegov governance state
  scenegov governance set-channel beta --company 7 --reason "canary"
  scenegov governance rollback --reason "broken ledger"
  scenegov governance clear-rollback
  scenegov governance pin-stable
  scenegov governance export-contract beta`,
	}

	cmd.AddCommand(governanceStateCmd())
	cmd.AddCommand(governanceSetChannelCmd())
	cmd.AddCommand(governanceRollbackCmd())
	cmd.AddCommand(governanceClearRollbackCmd())
	cmd.AddCommand(governancePinStableCmd())
	cmd.AddCommand(governanceExportContractCmd())
	return cmd
}

func addActionFlags(cmd *cobra.Command) {
	cmd.Flags().String("reason", "", "Reason recorded in the governance log")
	cmd.Flags().String("trace-id", "", "Trace ID (generated when empty)")
}

func actionFlags(cmd *cobra.Command) (reason, traceID string) {
	reason, _ = cmd.Flags().GetString("reason")
	traceID, _ = cmd.Flags().GetString("trace-id")
	return reason, traceID
}

func governanceStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the effective channel state of a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, _ := cmd.Flags().GetInt64("company")
			_, err := wire.GovernanceAdapter().State(NewContext(), companyID)
			return err
		},
	}
	cmd.Flags().Int64("company", 0, "Company ID (0 for global)")
	return cmd
}

func governanceSetChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-channel [stable|beta|dev]",
		Short: "Select the channel a scope serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, _ := cmd.Flags().GetInt64("company")
			reason, traceID := actionFlags(cmd)

			_, err := wire.GovernanceAdapter().SetChannel(NewContext(), primary.SetChannelRequest{
				CompanyID: companyID,
				Channel:   args[0],
				Reason:    reason,
				TraceID:   traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to set channel: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int64("company", 0, "Company ID (0 for global)")
	addActionFlags(cmd)
	return cmd
}

func governanceRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Pin a scope to the stable snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, _ := cmd.Flags().GetInt64("company")
			reason, traceID := actionFlags(cmd)

			_, err := wire.GovernanceAdapter().Rollback(NewContext(), primary.RollbackRequest{
				CompanyID: companyID,
				Reason:    reason,
				TraceID:   traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to roll back: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int64("company", 0, "Company ID (0 for global)")
	addActionFlags(cmd)
	return cmd
}

func governanceClearRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-rollback",
		Short: "Release a scope's rollback and restore its requested channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, _ := cmd.Flags().GetInt64("company")
			reason, traceID := actionFlags(cmd)

			_, err := wire.GovernanceAdapter().ClearRollback(NewContext(), primary.RollbackRequest{
				CompanyID: companyID,
				Reason:    reason,
				TraceID:   traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to clear rollback: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int64("company", 0, "Company ID (0 for global)")
	addActionFlags(cmd)
	return cmd
}

func governancePinStableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin-stable",
		Short: "Snapshot the current stable contract as the rollback target",
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, traceID := actionFlags(cmd)

			_, err := wire.GovernanceAdapter().PinStable(NewContext(), primary.PinStableRequest{
				Reason:  reason,
				TraceID: traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to pin stable contract: %w", err)
			}
			return nil
		},
	}
	addActionFlags(cmd)
	return cmd
}

func governanceExportContractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-contract [stable|beta|dev]",
		Short: "Write a channel's contract artifact without changing state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, traceID := actionFlags(cmd)

			_, err := wire.GovernanceAdapter().ExportContract(NewContext(), primary.ExportContractRequest{
				Channel: args[0],
				Reason:  reason,
				TraceID: traceID,
			})
			if err != nil {
				return fmt.Errorf("failed to export contract: %w", err)
			}
			return nil
		},
	}
	addActionFlags(cmd)
	return cmd
}

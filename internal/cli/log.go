package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the governance log",
	Long:  "View the append-only governance log (audit trail of channel, rollback, pin and import actions)",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent governance actions",
	Long:  "Show recent governance log entries (default 50), newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		limit, _ := cmd.Flags().GetInt("limit")
		scope, _ := cmd.Flags().GetString("scope")
		action, _ := cmd.Flags().GetString("action")
		since, _ := cmd.Flags().GetString("since")
		follow, _ := cmd.Flags().GetBool("follow")

		if limit <= 0 {
			limit = 50
		}

		filters := primary.LogFilters{
			Scope:  scope,
			Action: action,
			Since:  since,
			Limit:  limit,
		}

		entries, err := wire.GovernanceAdapter().Log(ctx, filters)
		if err != nil {
			return err
		}

		// If --follow, poll for entries created after the newest one shown
		if follow {
			if len(entries) > 0 {
				filters.Since = entries[0].CreatedAt
			}
			seen := make(map[int64]bool, len(entries))
			for _, e := range entries {
				seen[e.ID] = true
			}

			for {
				time.Sleep(1 * time.Second)

				newEntries, err := wire.LogService().ListLogs(ctx, filters)
				if err != nil {
					fmt.Printf("Error fetching logs: %v\n", err)
					continue
				}

				for i := len(newEntries) - 1; i >= 0; i-- {
					e := newEntries[i]
					if seen[e.ID] {
						continue
					}
					seen[e.ID] = true
					fmt.Printf("%s | %s | %s | %s -> %s | %s\n",
						e.CreatedAt, e.Action, e.Scope, e.FromChannel, e.ToChannel, e.TraceID)
					filters.Since = e.CreatedAt
				}
			}
		}

		return nil
	},
}

var logTraceCmd = &cobra.Command{
	Use:   "trace [trace-id]",
	Short: "Show every governance action of one trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.GovernanceAdapter().Log(NewContext(), primary.LogFilters{TraceID: args[0]})
		return err
	},
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	// log tail
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("scope", "", "Filter by scope (global or company:<id>)")
	logTailCmd.Flags().String("action", "", "Filter by action")
	logTailCmd.Flags().String("since", "", "Only entries at or after this RFC3339 time")
	logTailCmd.Flags().BoolP("follow", "f", false, "Follow mode: poll for new entries")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logTraceCmd)

	return logCmd
}

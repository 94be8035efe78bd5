package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/cli"
	"github.com/example/scenegov/internal/version"
)

func main() {
	var (
		workDir string
		actor   string
	)

	rootCmd := &cobra.Command{
		Use:     "scenegov",
		Short:   "scenegov - scene contract governance and safe rollout",
		Version: version.String(),
		Long: `scenegov governs which scene contract each company is served.

It resolves declared scenes against the host navigation, diagnoses drift and
debt, rolls scopes back to a pinned stable contract when critical scenes
break, and moves scenes between installations as checksummed packages.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.SetWorkDir(workDir)
			cli.DetectAndStoreActor(actor)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cli.Shutdown()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", ".", "Workspace directory containing .scenegov/")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Operator recorded in the governance log (default $SCENEGOV_ACTOR or the OS user)")

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.HealthCmd())
	rootCmd.AddCommand(cli.AppInitCmd())
	rootCmd.AddCommand(cli.GovernanceCmd())
	rootCmd.AddCommand(cli.PackageCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Shutdown()
		os.Exit(1)
	}
}

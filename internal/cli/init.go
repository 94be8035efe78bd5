package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/scenegov/internal/adapters/filesystem"
	"github.com/example/scenegov/internal/config"
	"github.com/example/scenegov/internal/core/degrade"
	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		store string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a scenegov workspace",
		Long: `Create .scenegov/config.json in the workspace directory together with a
starter scene registry, navigation tree, debt baseline and auto-degrade policy.

Existing files are kept unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(globalWorkDir)
			if err != nil {
				return fmt.Errorf("failed to resolve workspace directory: %w", err)
			}

			cfg := config.Default()
			cfg.Store = store
			if err := cfg.Validate(); err != nil {
				return err
			}

			written, err := InitWorkspace(dir, cfg, force)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Printf("✓ Wrote %s\n", path)
			}
			if len(written) == 0 {
				fmt.Println("Workspace already initialized (use --force to overwrite)")
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  scenegov health --full")
			fmt.Println("  scenegov governance pin-stable")
			fmt.Println("  scenegov serve")
			return nil
		},
	}

	cmd.Flags().StringVar(&store, "store", config.StoreSQLite, "State store: sqlite or memory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

// InitWorkspace writes the config and starter files under dir and returns the
// paths it wrote. Existing files are skipped unless force is set.
func InitWorkspace(dir string, cfg *config.Config, force bool) ([]string, error) {
	var written []string

	resolved := cfg.Resolve(dir)
	configPath := filepath.Join(dir, config.DirName, "config.json")
	if force || !exists(configPath) {
		if err := config.SaveConfig(dir, cfg); err != nil {
			return nil, err
		}
		written = append(written, configPath)
	}

	starters := []struct {
		path  string
		value any
	}{
		{resolved.RegistryPath, filesystem.RegistryFile{Scenes: starterScenes()}},
		{resolved.NavigationPath, filesystem.NavigationFile{Nodes: starterNavigation()}},
		{resolved.DebtBaselinePath, filesystem.DebtFile{Debt: []diagnostics.DebtEntry{}}},
		{resolved.PolicyPath, degrade.DefaultPolicy()},
	}
	for _, s := range starters {
		if !force && exists(s.path) {
			continue
		}
		if err := filesystem.WriteYAML(s.path, s.value); err != nil {
			return nil, err
		}
		written = append(written, s.path)
	}
	return written, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func starterScenes() []scene.Scene {
	return []scene.Scene{
		{
			Key:    "projects.list",
			Label:  "Projects",
			Route:  "/projects",
			Target: &scene.Target{MenuXMLID: "project.menu_projects"},
			Layout: scene.Layout{Kind: scene.LayoutList},
			ListProfile: &scene.ListProfile{
				Columns:     []string{"name", "partner_id", "stage_id"},
				DefaultSort: "name asc",
			},
		},
		{
			Key:    "projects.ledger",
			Label:  "Project Ledger",
			Route:  "/projects/ledger",
			Target: &scene.Target{MenuXMLID: "project.menu_ledger"},
			Layout: scene.Layout{Kind: scene.LayoutLedger},
			ListProfile: &scene.ListProfile{
				Columns: []string{"date", "project_id", "amount"},
			},
			Breadcrumbs: []scene.Breadcrumb{{Label: "Projects", SceneKey: "projects.list"}},
		},
	}
}

func starterNavigation() []resolver.Node {
	return []resolver.Node{
		{
			ID:   "root",
			Name: "Projects",
			Children: []resolver.Node{
				{ID: "projects", Name: "Projects", MenuXMLID: "project.menu_projects", SceneKey: "projects.list"},
				{ID: "ledger", Name: "Ledger", MenuXMLID: "project.menu_ledger", SceneKey: "projects.ledger"},
			},
		},
	}
}

package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/scenegov/internal/adapters/filesystem"
	"github.com/example/scenegov/internal/config"
	"github.com/example/scenegov/internal/ctxutil"
)

// TestInitWorkspace_WritesLoadableStarterFiles verifies that the files written
// by init are readable by the filesystem sources the engine uses.
func TestInitWorkspace_WritesLoadableStarterFiles(t *testing.T) {
	dir := t.TempDir()

	written, err := InitWorkspace(dir, config.Default(), false)
	if err != nil {
		t.Fatalf("InitWorkspace failed: %v", err)
	}
	if len(written) != 5 {
		t.Errorf("expected 5 files written, got %d: %v", len(written), written)
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	resolved := cfg.Resolve(dir)
	sources := &filesystem.Sources{
		RegistryPath:   resolved.RegistryPath,
		NavigationPath: resolved.NavigationPath,
		DebtPath:       resolved.DebtBaselinePath,
		PolicyPath:     resolved.PolicyPath,
	}

	ctx := context.Background()
	scenes, err := sources.LoadScenes(ctx)
	if err != nil {
		t.Fatalf("LoadScenes failed: %v", err)
	}
	if len(scenes) != 2 || scenes[0].Key != "projects.list" {
		t.Errorf("unexpected starter scenes: %+v", scenes)
	}
	nodes, err := sources.LoadNavigation(ctx)
	if err != nil {
		t.Fatalf("LoadNavigation failed: %v", err)
	}
	if len(nodes) != 1 || len(nodes[0].Children) != 2 {
		t.Errorf("unexpected starter navigation: %+v", nodes)
	}
	policy, err := sources.LoadPolicy(ctx)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if policy.Enabled {
		t.Error("starter policy should be disabled")
	}
}

func TestInitWorkspace_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := InitWorkspace(dir, config.Default(), false); err != nil {
		t.Fatalf("first InitWorkspace failed: %v", err)
	}

	registry := filepath.Join(dir, config.DirName, "registry.yaml")
	if err := os.WriteFile(registry, []byte("scenes: []\n"), 0644); err != nil {
		t.Fatalf("failed to edit registry: %v", err)
	}

	written, err := InitWorkspace(dir, config.Default(), false)
	if err != nil {
		t.Fatalf("second InitWorkspace failed: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("expected nothing written, got %v", written)
	}
	data, _ := os.ReadFile(registry)
	if string(data) != "scenes: []\n" {
		t.Errorf("registry overwritten without --force: %q", data)
	}

	written, err = InitWorkspace(dir, config.Default(), true)
	if err != nil {
		t.Fatalf("forced InitWorkspace failed: %v", err)
	}
	if len(written) != 5 {
		t.Errorf("expected 5 files rewritten with force, got %d", len(written))
	}
}

func TestDetectAndStoreActor(t *testing.T) {
	t.Cleanup(func() { globalActorID = "" })

	t.Setenv(ActorEnv, "ops@example.com")
	DetectAndStoreActor("")
	if got := GetActorID(); got != "ops@example.com" {
		t.Errorf("actor from env = %q", got)
	}

	DetectAndStoreActor("release-bot")
	if got := GetActorID(); got != "release-bot" {
		t.Errorf("actor from flag = %q", got)
	}
	if got := ctxutil.ActorFromContext(NewContext()); got != "release-bot" {
		t.Errorf("actor in context = %q", got)
	}
}

func TestCommandTree(t *testing.T) {
	tests := []struct {
		name string
		subs []string
	}{
		{"governance", []string{"state", "set-channel", "rollback", "clear-rollback", "pin-stable", "export-contract"}},
		{"package", []string{"export", "dry-run", "import", "installed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := GovernanceCmd()
			if tt.name == "package" {
				cmd = PackageCmd()
			}
			registered := map[string]bool{}
			for _, sub := range cmd.Commands() {
				registered[sub.Name()] = true
			}
			for _, want := range tt.subs {
				if !registered[want] {
					t.Errorf("subcommand %q not registered under %s", want, tt.name)
				}
			}
		})
	}
}

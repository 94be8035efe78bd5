package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/logging"
)

// DirName is the workspace directory holding config.json and, by default, all state.
const DirName = ".scenegov"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config represents the scenegov workspace configuration.
// Relative paths are resolved against the workspace directory.
type Config struct {
	Version                string                      `json:"version"`
	Store                  string                      `json:"store" validate:"oneof=sqlite memory"`
	DBPath                 string                      `json:"db_path"`
	ArtifactsDir           string                      `json:"artifacts_dir" validate:"required"`
	RegistryPath           string                      `json:"registry_path" validate:"required"`
	NavigationPath         string                      `json:"navigation_path" validate:"required"`
	DebtBaselinePath       string                      `json:"debt_baseline_path" validate:"required"`
	PolicyPath             string                      `json:"policy_path" validate:"required"`
	CriticalScenes         []string                    `json:"critical_scenes"`
	Exemptions             resolver.Exemptions         `json:"exemptions"`
	AcceptedCustomizations []diagnostics.Customization `json:"accepted_customizations,omitempty"`
	Log                    logging.Config              `json:"log"`
	HTTP                   HTTPConfig                  `json:"http"`
	Notify                 NotifyConfig                `json:"notify"`
}

// HTTPConfig configures the intent server.
type HTTPConfig struct {
	Addr string `json:"addr" validate:"required"`
}

// NotifyConfig configures the notification dispatcher.
type NotifyConfig struct {
	QueueSize      int `json:"queue_size" validate:"gte=0"`
	TimeoutSeconds int `json:"timeout_seconds" validate:"gte=0"`
	MaxParallel    int `json:"max_parallel" validate:"gte=0"`
}

// Default returns the configuration used when no config.json exists.
func Default() *Config {
	return &Config{
		Version:          "1",
		Store:            StoreSQLite,
		DBPath:           filepath.Join(DirName, "scenegov.db"),
		ArtifactsDir:     filepath.Join(DirName, "artifacts"),
		RegistryPath:     filepath.Join(DirName, "registry.yaml"),
		NavigationPath:   filepath.Join(DirName, "navigation.yaml"),
		DebtBaselinePath: filepath.Join(DirName, "debt_baseline.yaml"),
		PolicyPath:       filepath.Join(DirName, "auto_degrade.yaml"),
		CriticalScenes:   []string{"projects.list", "projects.ledger"},
		Exemptions:       resolver.Exemptions{Namespaces: []string{"base"}},
		Log:              logging.Config{Level: "info", Format: "console"},
		HTTP:             HTTPConfig{Addr: "127.0.0.1:8069"},
		Notify:           NotifyConfig{QueueSize: 64, TimeoutSeconds: 10, MaxParallel: 4},
	}
}

// LoadConfig reads .scenegov/config.json from the specified directory.
// Fields absent from the file keep their defaults.
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, DirName, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is LoadConfig falling back to Default when no config file exists.
func LoadOrDefault(dir string) (*Config, error) {
	if _, err := os.Stat(filepath.Join(dir, DirName, "config.json")); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadConfig(dir)
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", DirName, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfgDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		return fmt.Errorf("invalid config: db_path is required for the sqlite store")
	}
	return nil
}

// Resolve returns a copy of c with every relative path joined onto dir.
func (c *Config) Resolve(dir string) *Config {
	out := *c
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	out.DBPath = abs(c.DBPath)
	out.ArtifactsDir = abs(c.ArtifactsDir)
	out.RegistryPath = abs(c.RegistryPath)
	out.NavigationPath = abs(c.NavigationPath)
	out.DebtBaselinePath = abs(c.DebtBaselinePath)
	out.PolicyPath = abs(c.PolicyPath)
	return &out
}

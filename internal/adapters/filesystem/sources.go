package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/scenegov/internal/core/degrade"
	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/ports/secondary"
)

// RegistryFile is the on-disk shape of the scene registry.
type RegistryFile struct {
	Scenes []scene.Scene `yaml:"scenes"`
}

// NavigationFile is the on-disk shape of the host navigation tree.
type NavigationFile struct {
	Nodes []resolver.Node `yaml:"nodes"`
}

// DebtFile is the on-disk shape of the accepted debt baseline.
type DebtFile struct {
	Debt []diagnostics.DebtEntry `yaml:"debt"`
}

// Sources reads the registry, navigation tree, debt baseline and policy from
// YAML files. Every call re-reads its file. A missing file yields an empty
// value, or the default policy.
type Sources struct {
	RegistryPath   string
	NavigationPath string
	DebtPath       string
	PolicyPath     string
}

var (
	_ secondary.SceneSource      = (*Sources)(nil)
	_ secondary.NavigationSource = (*Sources)(nil)
	_ secondary.DebtSource       = (*Sources)(nil)
	_ secondary.PolicySource     = (*Sources)(nil)
)

// LoadScenes reads the declared scene registry.
func (s *Sources) LoadScenes(ctx context.Context) ([]scene.Scene, error) {
	var f RegistryFile
	if err := readYAML(s.RegistryPath, &f); err != nil {
		return nil, fmt.Errorf("failed to load scene registry: %w", err)
	}
	return f.Scenes, nil
}

// LoadNavigation reads the host navigation tree.
func (s *Sources) LoadNavigation(ctx context.Context) ([]resolver.Node, error) {
	var f NavigationFile
	if err := readYAML(s.NavigationPath, &f); err != nil {
		return nil, fmt.Errorf("failed to load navigation tree: %w", err)
	}
	return f.Nodes, nil
}

// LoadDebt reads the accepted debt baseline.
func (s *Sources) LoadDebt(ctx context.Context) ([]diagnostics.DebtEntry, error) {
	var f DebtFile
	if err := readYAML(s.DebtPath, &f); err != nil {
		return nil, fmt.Errorf("failed to load debt baseline: %w", err)
	}
	return f.Debt, nil
}

// LoadPolicy reads the auto-degrade policy. Fields missing from the file keep
// their default values.
func (s *Sources) LoadPolicy(ctx context.Context) (degrade.Policy, error) {
	p := degrade.DefaultPolicy()
	if err := readYAML(s.PolicyPath, &p); err != nil {
		return degrade.Policy{}, fmt.Errorf("failed to load auto-degrade policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return degrade.Policy{}, fmt.Errorf("invalid auto-degrade policy %s: %w", s.PolicyPath, err)
	}
	return p, nil
}

// readYAML decodes path into v, rejecting unknown fields.
// A missing path or file leaves v untouched.
func readYAML(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// WriteYAML writes v to path as YAML, creating parent directories.
func WriteYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

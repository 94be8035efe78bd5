// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/scenegov/internal/ports/secondary"
)

// ArtifactStore implements secondary.ArtifactStore under a base directory.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore creates a new filesystem artifact store rooted at baseDir.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("artifacts directory must not be empty")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifacts directory: %w", err)
	}
	return &ArtifactStore{baseDir: abs}, nil
}

// Ensure ArtifactStore implements the interface
var _ secondary.ArtifactStore = (*ArtifactStore)(nil)

// path maps a slash-separated reference onto the base directory.
// References that would escape the base directory are rejected.
func (a *ArtifactStore) path(ref string) (string, error) {
	local := filepath.FromSlash(ref)
	if ref == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("invalid artifact reference %q", ref)
	}
	return filepath.Join(a.baseDir, local), nil
}

// Write replaces an artifact atomically: readers see the old or the new
// content, never a partial file.
func (a *ArtifactStore) Write(ctx context.Context, ref string, data []byte) error {
	target, err := a.path(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact %s: %w", ref, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact %s: %w", ref, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace artifact %s: %w", ref, err)
	}
	return nil
}

// Read returns an artifact's content.
func (a *ArtifactStore) Read(ctx context.Context, ref string) ([]byte, error) {
	p, err := a.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, secondary.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref, err)
	}
	return data, nil
}

// Exists checks if an artifact exists.
func (a *ArtifactStore) Exists(ctx context.Context, ref string) (bool, error) {
	p, err := a.path(ref)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check artifact: %w", err)
	}
	return !info.IsDir(), nil
}

// Location returns the file path of an artifact.
func (a *ArtifactStore) Location(ref string) string {
	return filepath.Join(a.baseDir, filepath.FromSlash(ref))
}

// BaseDir returns the artifacts directory.
func (a *ArtifactStore) BaseDir() string {
	return a.baseDir
}

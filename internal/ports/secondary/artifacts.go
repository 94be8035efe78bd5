package secondary

import (
	"context"
	"errors"

	"github.com/example/scenegov/internal/core/degrade"
	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
)

// ErrArtifactNotFound is returned when an artifact reference does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore defines the secondary port for contract and package artifacts.
// References are slash-separated relative paths such as "stable/PINNED.json".
type ArtifactStore interface {
	// Write replaces the artifact atomically.
	Write(ctx context.Context, ref string, data []byte) error

	// Read returns the artifact content or ErrArtifactNotFound.
	Read(ctx context.Context, ref string) ([]byte, error)

	// Exists reports whether the artifact exists.
	Exists(ctx context.Context, ref string) (bool, error)

	// Location returns where the artifact lives, for display.
	Location(ref string) string
}

// SceneSource defines the secondary port for the declared scene registry.
type SceneSource interface {
	LoadScenes(ctx context.Context) ([]scene.Scene, error)
}

// NavigationSource defines the secondary port for the host navigation tree.
type NavigationSource interface {
	LoadNavigation(ctx context.Context) ([]resolver.Node, error)
}

// DebtSource defines the secondary port for the accepted debt baseline.
type DebtSource interface {
	LoadDebt(ctx context.Context) ([]diagnostics.DebtEntry, error)
}

// PolicySource defines the secondary port for the auto-degrade policy.
// Implementations must not cache: every call reflects the current policy.
type PolicySource interface {
	LoadPolicy(ctx context.Context) (degrade.Policy, error)
}

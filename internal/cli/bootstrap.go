// Package cli provides CLI commands for scenegov.
package cli

import (
	gocontext "context"
	"os"
	"os/user"

	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/wire"
)

// ActorEnv overrides the operator identity recorded in governance log payloads.
const ActorEnv = "SCENEGOV_ACTOR"

// globalActorID stores the operator identity for the current CLI invocation.
// Set once at startup by DetectAndStoreActor().
var globalActorID string

// DetectAndStoreActor resolves the operator identity and stores it globally.
// An explicit flag value wins over $SCENEGOV_ACTOR, which wins over the OS user.
// Should be called once at CLI startup in PersistentPreRun.
func DetectAndStoreActor(flagValue string) {
	switch {
	case flagValue != "":
		globalActorID = flagValue
	case os.Getenv(ActorEnv) != "":
		globalActorID = os.Getenv(ActorEnv)
	default:
		if u, err := user.Current(); err == nil {
			globalActorID = "cli:" + u.Username
		}
	}
}

// GetActorID returns the stored actor ID from CLI startup.
// Returns empty string if DetectAndStoreActor() was not called.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// globalWorkDir is the workspace directory selected by --workdir.
var globalWorkDir = "."

// SetWorkDir points the service container at a workspace directory.
func SetWorkDir(dir string) {
	globalWorkDir = dir
	wire.SetWorkDir(dir)
}

// Shutdown releases the resources opened by the commands of this invocation.
func Shutdown() {
	wire.Shutdown()
}

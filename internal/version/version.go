// Package version reports the build of the scenegov binary.
//
// Release builds of cmd/scenegov stamp the variables below:
//
//	go build -ldflags "\
//	  -X github.com/example/scenegov/internal/version.Version=v1.2.0 \
//	  -X github.com/example/scenegov/internal/version.Commit=$(git rev-parse HEAD) \
//	  -X github.com/example/scenegov/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/scenegov
//
// Unstamped builds fall back to the VCS settings the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// String returns the version line printed by scenegov --version.
func String() string {
	commit, built := Commit, BuildTime
	if info, ok := readBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && built == "unknown":
				built = s.Value
			}
		}
	}
	return fmt.Sprintf("scenegov %s (commit: %s, built: %s)", Version, short(commit), built)
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

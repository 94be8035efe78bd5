package scenepkg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/scenegov/internal/core/scene"
)

// Strategy selects how import collisions are resolved.
type Strategy string

const (
	StrategyNone   Strategy = ""
	StrategyRename Strategy = "rename_on_conflict"
	StrategySkip   Strategy = "skip_on_conflict"
)

// ErrUnknownStrategy is returned for a strategy name that is not supported.
var ErrUnknownStrategy = errors.New("unknown conflict strategy")

// ParseStrategy parses a strategy name. The empty string means no strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.TrimSpace(s)) {
	case StrategyNone:
		return StrategyNone, nil
	case StrategyRename:
		return StrategyRename, nil
	case StrategySkip:
		return StrategySkip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Conflict resolutions.
const (
	ResolutionRenamed    = "renamed"
	ResolutionSkipped    = "skipped"
	ResolutionUnresolved = "unresolved"
)

// Conflict is an incoming scene whose key or route is already taken.
type Conflict struct {
	SceneKey      string   `json:"scene_key"`
	Fields        []string `json:"fields"`
	ExistingKeys  []string `json:"existing_keys"`
	Resolution    string   `json:"resolution"`
	ResolvedKey   string   `json:"resolved_key,omitempty"`
	ResolvedRoute string   `json:"resolved_route,omitempty"`
}

// Addition is a scene the import will write.
type Addition struct {
	SceneKey    string      `json:"scene_key"`
	OriginalKey string      `json:"original_key"`
	Route       string      `json:"route"`
	Renamed     bool        `json:"renamed"`
	Scene       scene.Scene `json:"-"`
}

// Summary holds the counts of an import plan.
type Summary struct {
	SceneCount     int `json:"scene_count"`
	AdditionsCount int `json:"additions_count"`
	ConflictsCount int `json:"conflicts_count"`
	RenamedCount   int `json:"renamed_count"`
	SkippedCount   int `json:"skipped_count"`
	InvalidCount   int `json:"invalid_count"`
}

// Plan is the outcome of planning an import; a dry run and a real import
// compute the same plan.
type Plan struct {
	PackageName    string             `json:"package_name"`
	PackageVersion string             `json:"package_version"`
	SceneChannel   string             `json:"scene_channel"`
	Strategy       Strategy           `json:"strategy"`
	Additions      []Addition         `json:"additions"`
	Conflicts      []Conflict         `json:"conflicts"`
	Invalid        []scene.Quarantine `json:"invalid"`
	Summary        Summary            `json:"summary"`
}

// Unresolved counts conflicts that no strategy resolved.
func (p Plan) Unresolved() int {
	n := 0
	for _, c := range p.Conflicts {
		if c.Resolution == ResolutionUnresolved {
			n++
		}
	}
	return n
}

// Scenes returns the scenes the import writes, in plan order.
func (p Plan) Scenes() []scene.Scene {
	out := make([]scene.Scene, 0, len(p.Additions))
	for _, a := range p.Additions {
		out = append(out, a.Scene.Clone())
	}
	return out
}

// PlanInput carries the package and the scenes it would join.
// Existing must not contain scenes previously installed by the same package;
// those are replaced rather than conflicted with.
type PlanInput struct {
	Package  Package
	Existing []scene.Scene
	Strategy Strategy
}

// PlanImport computes additions and conflicts for importing a package.
// Any key or route already taken is a conflict, even when the existing scene
// is identical; re-importing the active version is handled by the caller.
// Renames are deterministic: keys gain "__<package>" and routes "--<package>",
// followed by "_N" or "-N" while the name is still taken. References from
// breadcrumbs and tiles inside the package follow renamed keys.
func PlanImport(in PlanInput) Plan {
	pkg := in.Package
	plan := Plan{
		PackageName:    pkg.PackageName,
		PackageVersion: pkg.PackageVersion,
		SceneChannel:   pkg.SceneChannel,
		Strategy:       in.Strategy,
		Additions:      []Addition{},
		Conflicts:      []Conflict{},
	}

	incoming := scene.NewRegistry(pkg.Scenes)
	plan.Invalid = incoming.Quarantined
	if plan.Invalid == nil {
		plan.Invalid = []scene.Quarantine{}
	}

	existing := scene.NewRegistry(in.Existing)
	takenKeys := map[string]bool{}
	routeOwners := map[string]string{}
	for _, s := range existing.Scenes() {
		takenKeys[s.Key] = true
		routeOwners[s.Route] = s.Key
	}

	suffix := slug(pkg.PackageName)
	renames := map[string]string{}

	for _, s := range incoming.Scenes() {
		keyTaken := takenKeys[s.Key]
		owner, routeTaken := routeOwners[s.Route]
		if !keyTaken && !routeTaken {
			plan.Additions = append(plan.Additions, Addition{
				SceneKey:    s.Key,
				OriginalKey: s.Key,
				Route:       s.Route,
				Scene:       s,
			})
			takenKeys[s.Key] = true
			routeOwners[s.Route] = s.Key
			continue
		}

		c := Conflict{SceneKey: s.Key}
		if keyTaken {
			c.Fields = append(c.Fields, "key")
			c.ExistingKeys = append(c.ExistingKeys, s.Key)
		}
		if routeTaken {
			c.Fields = append(c.Fields, "route")
			if owner != s.Key {
				c.ExistingKeys = append(c.ExistingKeys, owner)
			}
		}

		switch in.Strategy {
		case StrategyRename:
			renamed := s
			if keyTaken {
				renamed.Key = uniqueName(s.Key+"__"+suffix, "_", takenKeys)
			}
			if routeTaken {
				renamed.Route = uniqueName(s.Route+"--"+suffix, "-", routeOwnersSet(routeOwners))
			}
			c.Resolution = ResolutionRenamed
			c.ResolvedKey = renamed.Key
			c.ResolvedRoute = renamed.Route
			renames[s.Key] = renamed.Key
			takenKeys[renamed.Key] = true
			routeOwners[renamed.Route] = renamed.Key
			plan.Additions = append(plan.Additions, Addition{
				SceneKey:    renamed.Key,
				OriginalKey: s.Key,
				Route:       renamed.Route,
				Renamed:     true,
				Scene:       renamed,
			})
			plan.Summary.RenamedCount++
		case StrategySkip:
			c.Resolution = ResolutionSkipped
			plan.Summary.SkippedCount++
		default:
			c.Resolution = ResolutionUnresolved
		}
		plan.Conflicts = append(plan.Conflicts, c)
	}

	for i := range plan.Additions {
		plan.Additions[i].Scene = rewriteRefs(plan.Additions[i].Scene, renames)
	}

	plan.Summary.SceneCount = len(pkg.Scenes)
	plan.Summary.AdditionsCount = len(plan.Additions)
	plan.Summary.ConflictsCount = len(plan.Conflicts)
	plan.Summary.InvalidCount = len(plan.Invalid)
	return plan
}

func rewriteRefs(s scene.Scene, renames map[string]string) scene.Scene {
	if len(renames) == 0 {
		return s
	}
	out := s.Clone()
	for i, b := range out.Breadcrumbs {
		if to, ok := renames[b.SceneKey]; ok {
			out.Breadcrumbs[i].SceneKey = to
		}
	}
	for i, t := range out.Tiles {
		if to, ok := renames[t.SceneKey]; ok {
			out.Tiles[i].SceneKey = to
		}
	}
	return out
}

func routeOwnersSet(owners map[string]string) map[string]bool {
	set := make(map[string]bool, len(owners))
	for r := range owners {
		set[r] = true
	}
	return set
}

func uniqueName(base, sep string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + sep + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "pkg"
	}
	return b.String()
}

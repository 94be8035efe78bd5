package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Quarantine reason codes.
const (
	ReasonMissingKey     = "missing_key"
	ReasonMissingLabel   = "missing_label"
	ReasonMissingRoute   = "missing_route"
	ReasonMissingTarget  = "missing_target"
	ReasonInvalidChannel = "invalid_channel"
	ReasonDuplicateKey   = "duplicate_key"
	ReasonDuplicateRoute = "duplicate_route"
)

var sceneValidate *validator.Validate

func init() {
	sceneValidate = validator.New()
	sceneValidate.RegisterStructValidation(validateTarget, Target{})
}

// validateTarget rejects a target that binds nothing.
func validateTarget(sl validator.StructLevel) {
	t := sl.Current().Interface().(Target)
	if t.IsZero() {
		sl.ReportError(t.Route, "Route", "Route", "target", "")
	}
}

// Quarantine records a scene excluded from the effective registry.
type Quarantine struct {
	Index    int      `json:"index"`
	SceneKey string   `json:"scene_key,omitempty"`
	Reasons  []string `json:"reasons"`
}

// Registry is a validated, duplicate-free scene catalog ordered by key.
type Registry struct {
	scenes      []Scene
	byKey       map[string]int
	byRoute     map[string]string
	Quarantined []Quarantine
}

// Validate checks the structural invariants a scene must satisfy to enter a registry.
// It returns the sorted list of quarantine reasons, empty when the scene is valid.
func Validate(s Scene) []string {
	err := sceneValidate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	seen := map[string]bool{}
	for _, fe := range verrs {
		seen[reasonFor(fe)] = true
	}
	reasons := make([]string, 0, len(seen))
	for r := range seen {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}

func reasonFor(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	switch {
	case strings.Contains(ns, "Channels"):
		return ReasonInvalidChannel
	case strings.Contains(ns, "Target"):
		return ReasonMissingTarget
	case fe.Field() == "Key":
		return ReasonMissingKey
	case fe.Field() == "Label":
		return ReasonMissingLabel
	case fe.Field() == "Route":
		return ReasonMissingRoute
	}
	return fmt.Sprintf("invalid_%s", strings.ToLower(fe.Field()))
}

// NewRegistry normalizes raw scenes into a registry. Invalid scenes and later
// duplicates of a key or route are quarantined, never fatal. The first
// occurrence of a key or route wins.
func NewRegistry(raw []Scene) *Registry {
	r := &Registry{
		byKey:   make(map[string]int),
		byRoute: make(map[string]string),
	}

	accepted := make([]Scene, 0, len(raw))
	for i, s := range raw {
		s = normalizeScene(s)
		if reasons := Validate(s); len(reasons) > 0 {
			r.Quarantined = append(r.Quarantined, Quarantine{Index: i, SceneKey: s.Key, Reasons: reasons})
			continue
		}
		var reasons []string
		if _, dup := r.byRoute[s.Route]; dup {
			reasons = append(reasons, ReasonDuplicateRoute)
		}
		if containsKey(accepted, s.Key) {
			reasons = append([]string{ReasonDuplicateKey}, reasons...)
		}
		if len(reasons) > 0 {
			r.Quarantined = append(r.Quarantined, Quarantine{Index: i, SceneKey: s.Key, Reasons: reasons})
			continue
		}
		r.byRoute[s.Route] = s.Key
		accepted = append(accepted, s)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Key < accepted[j].Key })
	r.scenes = accepted
	for i, s := range accepted {
		r.byKey[s.Key] = i
	}
	return r
}

func containsKey(scenes []Scene, key string) bool {
	for _, s := range scenes {
		if s.Key == key {
			return true
		}
	}
	return false
}

// normalizeScene trims identity fields so that whitespace never defeats uniqueness.
func normalizeScene(s Scene) Scene {
	s = s.Clone()
	s.Key = strings.TrimSpace(s.Key)
	s.Label = strings.TrimSpace(s.Label)
	s.Route = strings.TrimSpace(s.Route)
	for i, ch := range s.Channels {
		s.Channels[i] = strings.ToLower(strings.TrimSpace(ch))
	}
	return s
}

// Scenes returns a copy of the registry scenes ordered by key.
func (r *Registry) Scenes() []Scene {
	out := make([]Scene, len(r.scenes))
	for i, s := range r.scenes {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of effective scenes.
func (r *Registry) Len() int {
	return len(r.scenes)
}

// Get returns the scene with the given key.
func (r *Registry) Get(key string) (Scene, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Scene{}, false
	}
	return r.scenes[i].Clone(), true
}

// HasKey reports whether key is taken.
func (r *Registry) HasKey(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// RouteOwner returns the key of the scene that owns route.
func (r *Registry) RouteOwner(route string) (string, bool) {
	key, ok := r.byRoute[route]
	return key, ok
}

// ForChannel returns the subset of raw scenes published on channel c.
func ForChannel(raw []Scene, c Channel) []Scene {
	out := make([]Scene, 0, len(raw))
	for _, s := range raw {
		if s.InChannel(c) {
			out = append(out, s)
		}
	}
	return out
}

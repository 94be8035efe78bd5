// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string // "debug", "info", "warn", "error"
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// ArtifactEffect represents a write of a contract or package artifact.
type ArtifactEffect struct {
	Operation string // "write"
	Ref       string // e.g. "stable/PINNED.json", "packages/crm-1.0.0.json"
	Content   []byte
}

func (e ArtifactEffect) EffectType() string { return "artifact" }

// NotifyEffect represents a best-effort notification dispatch.
// Delivery happens asynchronously; executing the effect only enqueues it.
type NotifyEffect struct {
	TraceID     string
	Scope       string
	ActionTaken string
	ReasonCodes []string
	Channels    []string
}

func (e NotifyEffect) EffectType() string { return "notify" }

// MetricEffect represents a counter increment.
type MetricEffect struct {
	Name   string // e.g. "governance_action", "auto_degrade_trigger"
	Labels []string
}

func (e MetricEffect) EffectType() string { return "metric" }

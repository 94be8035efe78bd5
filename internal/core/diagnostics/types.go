// Package diagnostics classifies resolution failures and structural drift into
// severity-tagged findings and reconciles them against the accepted debt baseline.
// This is part of the Functional Core - no I/O, only pure functions.
package diagnostics

import (
	"strings"
)

// Severity tags a finding.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityNonCritical Severity = "non_critical"
	SeverityWarn        Severity = "warn"
	SeverityInfo        Severity = "info"
)

// Resolve error codes.
const (
	CodeTargetMissing     = "target_missing"
	CodeLabelMissing      = "label_missing"
	CodeRouteMissing      = "route_missing"
	CodeLayoutKindInvalid = "layout_kind_invalid"
	CodeListColumnsEmpty  = "list_columns_missing"
)

// Resolve error kinds.
const (
	KindTarget      = "target"
	KindStructure   = "structure"
	KindLayout      = "layout"
	KindListProfile = "list_profile"
)

// DriftFallbackOverride marks a field that diverged from its baseline without
// an accepted customization.
const DriftFallbackOverride = "fallback_override"

// ResolveError is a structural failure of a resolved scene.
type ResolveError struct {
	SceneKey string   `json:"scene_key"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Ref      string   `json:"ref,omitempty"`
}

// DriftEntry is a divergence between a scene and its baseline.
type DriftEntry struct {
	SceneKey string   `json:"scene_key"`
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
	Fields   []string `json:"fields"`
}

// DebtEntry is an accepted non-critical finding.
type DebtEntry struct {
	SceneKey string   `json:"scene_key" yaml:"scene_key"`
	Code     string   `json:"code,omitempty" yaml:"code,omitempty"`
	Kind     string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Fields   []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Ref      string   `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Key returns the identity used for exact baseline matching.
func (d DebtEntry) Key() string {
	if d.Kind != "" {
		return d.SceneKey + "/" + d.Kind + "/" + strings.Join(d.Fields, ",")
	}
	return d.SceneKey + "/" + d.Code + "/" + d.Ref
}

// Customization declares fields of a scene that may legitimately diverge from baseline.
// A "*" field accepts every divergence for the scene.
type Customization struct {
	SceneKey string   `json:"scene_key" yaml:"scene_key"`
	Fields   []string `json:"fields" yaml:"fields"`
}

// Report is the output of a diagnostics pass.
type Report struct {
	ResolveErrors []ResolveError `json:"resolve_errors"`
	Drift         []DriftEntry   `json:"drift"`
	Debt          []DebtEntry    `json:"debt"`
	MissingDebt   []DebtEntry    `json:"missing_debt"`
}

// CriticalResolveErrors counts critical-severity resolve errors.
func (r Report) CriticalResolveErrors() int {
	n := 0
	for _, e := range r.ResolveErrors {
		if e.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// CriticalDriftWarn counts warn-severity drift entries; warn only exists on critical scenes.
func (r Report) CriticalDriftWarn() int {
	n := 0
	for _, d := range r.Drift {
		if d.Severity == SeverityWarn {
			n++
		}
	}
	return n
}

// Healthy reports whether the pass found no critical finding and no unaccepted regression.
func (r Report) Healthy() bool {
	return r.CriticalResolveErrors() == 0 && r.CriticalDriftWarn() == 0 && len(r.MissingDebt) == 0
}

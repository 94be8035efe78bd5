// Package resolver maps external navigation nodes onto registry scenes.
// This is part of the Functional Core - no I/O, only pure functions.
//
// Resolution is best-effort: a node that cannot be mapped produces a
// normalize warning and never aborts its siblings.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/scenegov/internal/core/scene"
)

// Warning codes.
const (
	WarnLegacyActionURL     = "legacy_action_url"
	WarnMissingSceneMapping = "action_missing_scene_mapping"
	WarnUnknownSceneKeyHint = "scene_key_hint_unknown"
	WarnSceneQuarantined    = "scene_quarantined"
)

// Exemption kinds.
const (
	ExemptAuto   = "auto"
	ExemptManual = "manual"
)

// Binding statuses.
const (
	BindingBound         = "bound"
	BindingTargetMissing = "target_missing"
)

// Node is one entry of the host navigation tree.
type Node struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	MenuID      int64  `json:"menu_id,omitempty" yaml:"menu_id,omitempty"`
	MenuXMLID   string `json:"menu_xmlid,omitempty" yaml:"menu_xmlid,omitempty"`
	ActionID    int64  `json:"action_id,omitempty" yaml:"action_id,omitempty"`
	ActionXMLID string `json:"action_xmlid,omitempty" yaml:"action_xmlid,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	SceneKey    string `json:"scene_key,omitempty" yaml:"scene_key,omitempty"`
	Children    []Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Exemptions lists navigation nodes excluded from the coverage denominator.
type Exemptions struct {
	// Namespaces are xmlid module prefixes exempted automatically (e.g. "base").
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	// Manual are curated node IDs or xmlids.
	Manual []string `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// SourceRegistry is the origin of scenes declared in the base registry.
const SourceRegistry = "registry"

// Input contains everything a resolution run needs. All values are pre-fetched.
type Input struct {
	Nodes      []Node
	Registry   *scene.Registry
	Exemptions Exemptions
	// Sources maps scene keys to their origin (e.g. "package:p1@1.0.0").
	// Keys not listed come from the base registry.
	Sources map[string]string
}

// Warning is a non-fatal normalize finding.
type Warning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	NodeID   string `json:"node_id,omitempty"`
	Ref      string `json:"ref,omitempty"`
	SceneKey string `json:"scene_key,omitempty"`
}

// Binding describes how a registry scene attached to the navigation tree.
type Binding struct {
	Status  string   `json:"status"`
	Ref     string   `json:"ref,omitempty"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// ResolvedScene is a registry scene plus its navigation binding.
type ResolvedScene struct {
	Scene   scene.Scene `json:"scene"`
	Binding Binding     `json:"binding"`
	Source  string      `json:"source"`
}

// Exempted records a node excluded from coverage.
type Exempted struct {
	NodeID string `json:"node_id"`
	Kind   string `json:"kind"`
}

// Coverage reports resolved / (total - exempted).
type Coverage struct {
	Total          int     `json:"total"`
	Resolved       int     `json:"resolved"`
	AutoExempted   int     `json:"auto_exempted"`
	ManualExempted int     `json:"manual_exempted"`
	Ratio          float64 `json:"ratio"`
}

// Result is the output of a resolution run.
type Result struct {
	Scenes   []ResolvedScene `json:"scenes"`
	Warnings []Warning       `json:"normalize_warnings"`
	Exempted []Exempted      `json:"exempted,omitempty"`
	Coverage Coverage        `json:"coverage"`
}

var legacyActionPattern = regexp.MustCompile(`[#&?]action=([A-Za-z0-9_.]+)`)

// Resolve maps navigation nodes onto registry scenes.
// Nodes are visited depth-first in declaration order so output is deterministic.
func Resolve(in Input) Result {
	reg := in.Registry
	if reg == nil {
		reg = scene.NewRegistry(nil)
	}
	idx := newTargetIndex(reg)
	exempt := newExemptionSet(in.Exemptions)

	var result Result
	menusSeen := map[string]bool{}
	actionsSeen := map[string]bool{}
	nodesByScene := map[string][]string{}

	for _, n := range flatten(in.Nodes) {
		for _, ref := range menuRefs(n.MenuID, n.MenuXMLID) {
			menusSeen[ref] = true
		}
		actionID, actionXMLID := n.ActionID, n.ActionXMLID
		legacy := isLegacyURL(n.URL)
		if legacy && actionID == 0 && actionXMLID == "" {
			actionID, actionXMLID = parseLegacyAction(n.URL)
		}
		for _, ref := range actionRefs(actionID, actionXMLID) {
			actionsSeen[ref] = true
		}

		if actionID == 0 && actionXMLID == "" && !legacy {
			continue
		}
		result.Coverage.Total++

		if kind, ok := exempt.match(n); ok {
			result.Exempted = append(result.Exempted, Exempted{NodeID: n.ID, Kind: kind})
			if kind == ExemptAuto {
				result.Coverage.AutoExempted++
			} else {
				result.Coverage.ManualExempted++
			}
			continue
		}

		ref := describeRef(actionID, actionXMLID, n.URL)
		if legacy {
			result.Warnings = append(result.Warnings, Warning{
				Code:    WarnLegacyActionURL,
				Message: fmt.Sprintf("navigation node %q uses a legacy action URL", n.ID),
				NodeID:  n.ID,
				Ref:     ref,
			})
		}

		key := ""
		if n.SceneKey != "" {
			if reg.HasKey(n.SceneKey) {
				key = n.SceneKey
			} else {
				result.Warnings = append(result.Warnings, Warning{
					Code:     WarnUnknownSceneKeyHint,
					Message:  fmt.Sprintf("navigation node %q names unknown scene %q", n.ID, n.SceneKey),
					NodeID:   n.ID,
					Ref:      ref,
					SceneKey: n.SceneKey,
				})
			}
		}
		if key == "" {
			key = idx.lookup(actionID, actionXMLID, n.MenuID, n.MenuXMLID)
		}
		if key == "" {
			result.Warnings = append(result.Warnings, Warning{
				Code:    WarnMissingSceneMapping,
				Message: fmt.Sprintf("action URL missing scene mapping for navigation node %q", n.ID),
				NodeID:  n.ID,
				Ref:     ref,
			})
			continue
		}
		result.Coverage.Resolved++
		nodesByScene[key] = append(nodesByScene[key], n.ID)
	}

	for _, s := range reg.Scenes() {
		rs := ResolvedScene{
			Scene:   s,
			Binding: Binding{Status: BindingBound, NodeIDs: nodesByScene[s.Key]},
			Source:  SourceRegistry,
		}
		if src, ok := in.Sources[s.Key]; ok {
			rs.Source = src
		}
		if missing := missingTargetRef(*s.Target, menusSeen, actionsSeen); missing != "" {
			rs.Binding.Status = BindingTargetMissing
			rs.Binding.Ref = missing
		}
		result.Scenes = append(result.Scenes, rs)
	}

	for _, q := range reg.Quarantined {
		result.Warnings = append(result.Warnings, Warning{
			Code:     WarnSceneQuarantined,
			Message:  fmt.Sprintf("scene #%d excluded from registry: %s", q.Index, strings.Join(q.Reasons, ", ")),
			SceneKey: q.SceneKey,
		})
	}

	result.Coverage.Ratio = ratio(result.Coverage)
	return result
}

func ratio(c Coverage) float64 {
	denominator := c.Total - c.AutoExempted - c.ManualExempted
	if denominator <= 0 {
		return 1
	}
	return float64(c.Resolved) / float64(denominator)
}

// missingTargetRef returns the first target reference absent from the tree.
// Route and model-only targets are client-side and always bound.
func missingTargetRef(t scene.Target, menus, actions map[string]bool) string {
	if t.HasMenuRef() && !anySeen(menuRefs(t.MenuID, t.MenuXMLID), menus) {
		return describeMenu(t.MenuID, t.MenuXMLID)
	}
	if t.HasActionRef() && !anySeen(actionRefs(t.ActionID, t.ActionXMLID), actions) {
		return describeRef(t.ActionID, t.ActionXMLID, "")
	}
	return ""
}

func anySeen(refs []string, seen map[string]bool) bool {
	for _, r := range refs {
		if seen[r] {
			return true
		}
	}
	return false
}

func flatten(nodes []Node) []Node {
	var out []Node
	var walk func([]Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

func isLegacyURL(url string) bool {
	return url != "" && legacyActionPattern.MatchString(url)
}

func parseLegacyAction(url string) (int64, string) {
	m := legacyActionPattern.FindStringSubmatch(url)
	if m == nil {
		return 0, ""
	}
	if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
		return id, ""
	}
	return 0, m[1]
}

func menuRefs(id int64, xmlid string) []string {
	var refs []string
	if xmlid != "" {
		refs = append(refs, "xmlid:"+xmlid)
	}
	if id != 0 {
		refs = append(refs, "id:"+strconv.FormatInt(id, 10))
	}
	return refs
}

func actionRefs(id int64, xmlid string) []string {
	return menuRefs(id, xmlid)
}

func describeMenu(id int64, xmlid string) string {
	if xmlid != "" {
		return "menu:" + xmlid
	}
	return "menu:" + strconv.FormatInt(id, 10)
}

func describeRef(id int64, xmlid, url string) string {
	switch {
	case xmlid != "":
		return "action:" + xmlid
	case id != 0:
		return "action:" + strconv.FormatInt(id, 10)
	default:
		return url
	}
}

// Package scene contains the pure scene catalog model: the Scene type, registry
// normalization with quarantine, and canonical serialization for checksums.
// This is part of the Functional Core - no I/O, only pure functions.
package scene

import "strings"

// Channel is a named rollout track.
type Channel string

const (
	ChannelStable Channel = "stable"
	ChannelBeta   Channel = "beta"
	ChannelDev    Channel = "dev"
)

// Channels lists every valid channel in promotion order.
var Channels = []Channel{ChannelStable, ChannelBeta, ChannelDev}

// ParseChannel returns the channel named by s.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelStable:
		return ChannelStable, true
	case ChannelBeta:
		return ChannelBeta, true
	case ChannelDev:
		return ChannelDev, true
	}
	return "", false
}

// LayoutKind is the presentation family of a scene.
type LayoutKind string

const (
	LayoutList      LayoutKind = "list"
	LayoutRecord    LayoutKind = "record"
	LayoutWorkspace LayoutKind = "workspace"
	LayoutLedger    LayoutKind = "ledger"
)

// Valid reports whether k is a known layout kind.
func (k LayoutKind) Valid() bool {
	switch k {
	case LayoutList, LayoutRecord, LayoutWorkspace, LayoutLedger:
		return true
	}
	return false
}

// Target binds a scene to either a client route or a host menu/action/model.
type Target struct {
	Route       string `json:"route,omitempty" yaml:"route,omitempty"`
	MenuID      int64  `json:"menu_id,omitempty" yaml:"menu_id,omitempty"`
	MenuXMLID   string `json:"menu_xmlid,omitempty" yaml:"menu_xmlid,omitempty"`
	ActionID    int64  `json:"action_id,omitempty" yaml:"action_id,omitempty"`
	ActionXMLID string `json:"action_xmlid,omitempty" yaml:"action_xmlid,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
}

// IsZero reports whether the target carries no binding at all.
func (t Target) IsZero() bool {
	return t.Route == "" && !t.HasMenuRef() && !t.HasActionRef() && t.Model == ""
}

// HasMenuRef reports whether the target points at a host menu.
func (t Target) HasMenuRef() bool {
	return t.MenuID != 0 || t.MenuXMLID != ""
}

// HasActionRef reports whether the target points at a host action.
func (t Target) HasActionRef() bool {
	return t.ActionID != 0 || t.ActionXMLID != ""
}

// Layout carries presentation hints.
type Layout struct {
	Kind    LayoutKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Sidebar string     `json:"sidebar,omitempty" yaml:"sidebar,omitempty"`
	Header  string     `json:"header,omitempty" yaml:"header,omitempty"`
}

// ListProfile describes how list-like scenes present their rows.
type ListProfile struct {
	Columns       []string          `json:"columns,omitempty" yaml:"columns,omitempty"`
	HiddenColumns []string          `json:"hidden_columns,omitempty" yaml:"hidden_columns,omitempty"`
	ColumnLabels  map[string]string `json:"column_labels,omitempty" yaml:"column_labels,omitempty"`
	DefaultSort   string            `json:"default_sort,omitempty" yaml:"default_sort,omitempty"`
}

// Breadcrumb is one navigation crumb rendered above a scene.
type Breadcrumb struct {
	Label    string `json:"label" yaml:"label"`
	SceneKey string `json:"scene_key,omitempty" yaml:"scene_key,omitempty"`
}

// Tile is a workspace shortcut to another scene.
type Tile struct {
	Key      string `json:"key" yaml:"key"`
	Label    string `json:"label" yaml:"label"`
	SceneKey string `json:"scene_key,omitempty" yaml:"scene_key,omitempty"`
}

// Scene is a named unit of UI-to-data-model binding.
type Scene struct {
	Key          string       `json:"key" yaml:"key" validate:"required"`
	Label        string       `json:"label" yaml:"label" validate:"required"`
	Route        string       `json:"route" yaml:"route" validate:"required"`
	Target       *Target      `json:"target,omitempty" yaml:"target,omitempty" validate:"required"`
	Layout       Layout       `json:"layout" yaml:"layout"`
	ListProfile  *ListProfile `json:"list_profile,omitempty" yaml:"list_profile,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Breadcrumbs  []Breadcrumb `json:"breadcrumbs,omitempty" yaml:"breadcrumbs,omitempty"`
	Tiles        []Tile       `json:"tiles,omitempty" yaml:"tiles,omitempty"`
	Channels     []string     `json:"channels,omitempty" yaml:"channels,omitempty" validate:"dive,oneof=stable beta dev"`
}

// InChannel reports whether the scene is published on channel c.
// A scene without an explicit channel list is published everywhere.
func (s Scene) InChannel(c Channel) bool {
	if len(s.Channels) == 0 {
		return true
	}
	for _, ch := range s.Channels {
		if Channel(ch) == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	out := s
	if s.Target != nil {
		t := *s.Target
		out.Target = &t
	}
	if s.ListProfile != nil {
		lp := ListProfile{
			Columns:       cloneStrings(s.ListProfile.Columns),
			HiddenColumns: cloneStrings(s.ListProfile.HiddenColumns),
			DefaultSort:   s.ListProfile.DefaultSort,
		}
		if s.ListProfile.ColumnLabels != nil {
			lp.ColumnLabels = make(map[string]string, len(s.ListProfile.ColumnLabels))
			for k, v := range s.ListProfile.ColumnLabels {
				lp.ColumnLabels[k] = v
			}
		}
		out.ListProfile = &lp
	}
	out.Capabilities = cloneStrings(s.Capabilities)
	out.Channels = cloneStrings(s.Channels)
	if s.Breadcrumbs != nil {
		out.Breadcrumbs = append([]Breadcrumb(nil), s.Breadcrumbs...)
	}
	if s.Tiles != nil {
		out.Tiles = append([]Tile(nil), s.Tiles...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

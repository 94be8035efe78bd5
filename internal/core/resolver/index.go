package resolver

import (
	"strings"

	"github.com/example/scenegov/internal/core/scene"
)

// targetIndex finds scenes by host reference. Registry scenes arrive ordered
// by key, so the lowest key wins when two scenes share a reference.
type targetIndex struct {
	actionXMLID map[string]string
	actionID    map[int64]string
	menuXMLID   map[string]string
	menuID      map[int64]string
}

func newTargetIndex(reg *scene.Registry) *targetIndex {
	idx := &targetIndex{
		actionXMLID: map[string]string{},
		actionID:    map[int64]string{},
		menuXMLID:   map[string]string{},
		menuID:      map[int64]string{},
	}
	for _, s := range reg.Scenes() {
		t := s.Target
		if t.ActionXMLID != "" {
			putString(idx.actionXMLID, t.ActionXMLID, s.Key)
		}
		if t.ActionID != 0 {
			putInt(idx.actionID, t.ActionID, s.Key)
		}
		if t.MenuXMLID != "" {
			putString(idx.menuXMLID, t.MenuXMLID, s.Key)
		}
		if t.MenuID != 0 {
			putInt(idx.menuID, t.MenuID, s.Key)
		}
	}
	return idx
}

func putString(m map[string]string, k, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

func putInt(m map[int64]string, k int64, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

// lookup tries action references before menu references.
func (idx *targetIndex) lookup(actionID int64, actionXMLID string, menuID int64, menuXMLID string) string {
	if actionXMLID != "" {
		if k, ok := idx.actionXMLID[actionXMLID]; ok {
			return k
		}
	}
	if actionID != 0 {
		if k, ok := idx.actionID[actionID]; ok {
			return k
		}
	}
	if menuXMLID != "" {
		if k, ok := idx.menuXMLID[menuXMLID]; ok {
			return k
		}
	}
	if menuID != 0 {
		if k, ok := idx.menuID[menuID]; ok {
			return k
		}
	}
	return ""
}

type exemptionSet struct {
	namespaces map[string]bool
	manual     map[string]bool
}

func newExemptionSet(e Exemptions) exemptionSet {
	set := exemptionSet{namespaces: map[string]bool{}, manual: map[string]bool{}}
	for _, ns := range e.Namespaces {
		set.namespaces[strings.TrimSuffix(ns, ".")] = true
	}
	for _, m := range e.Manual {
		set.manual[m] = true
	}
	return set
}

// match reports whether n is exempt. Manual curation wins over namespace rules.
func (e exemptionSet) match(n Node) (string, bool) {
	for _, id := range []string{n.ID, n.MenuXMLID, n.ActionXMLID} {
		if id != "" && e.manual[id] {
			return ExemptManual, true
		}
	}
	for _, xmlid := range []string{n.MenuXMLID, n.ActionXMLID} {
		if ns, _, ok := strings.Cut(xmlid, "."); ok && e.namespaces[ns] {
			return ExemptAuto, true
		}
	}
	return "", false
}

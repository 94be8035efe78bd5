package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/scenegov/internal/core/scene"
)

func testRegistry() *scene.Registry {
	return scene.NewRegistry([]scene.Scene{
		{
			Key:    "projects.list",
			Label:  "Projects",
			Route:  "/projects",
			Target: &scene.Target{MenuXMLID: "construction.menu_projects", ActionXMLID: "construction.action_projects"},
			Layout: scene.Layout{Kind: scene.LayoutList},
		},
		{
			Key:    "projects.ledger",
			Label:  "Ledger",
			Route:  "/projects/ledger",
			Target: &scene.Target{MenuXMLID: "construction.menu_ledger", ActionID: 412},
			Layout: scene.Layout{Kind: scene.LayoutLedger},
		},
		{
			Key:    "portal.home",
			Label:  "Home",
			Route:  "/home",
			Target: &scene.Target{Route: "/home"},
			Layout: scene.Layout{Kind: scene.LayoutWorkspace},
		},
	})
}

func TestResolve_MatchesAndWarns(t *testing.T) {
	nodes := []Node{
		{
			ID:        "root",
			MenuXMLID: "construction.menu_root",
			Children: []Node{
				{ID: "n1", MenuXMLID: "construction.menu_projects", ActionXMLID: "construction.action_projects"},
				{ID: "n2", MenuXMLID: "construction.menu_ledger", URL: "/web#action=412&model=project.ledger"},
				{ID: "n3", ActionXMLID: "construction.action_orphan"},
			},
		},
	}

	got := Resolve(Input{Nodes: nodes, Registry: testRegistry()})

	wantWarnings := []Warning{
		{
			Code:    WarnLegacyActionURL,
			Message: `navigation node "n2" uses a legacy action URL`,
			NodeID:  "n2",
			Ref:     "action:412",
		},
		{
			Code:    WarnMissingSceneMapping,
			Message: `action URL missing scene mapping for navigation node "n3"`,
			NodeID:  "n3",
			Ref:     "action:construction.action_orphan",
		},
	}
	if diff := cmp.Diff(wantWarnings, got.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}

	wantCoverage := Coverage{Total: 3, Resolved: 2, Ratio: 2.0 / 3.0}
	if diff := cmp.Diff(wantCoverage, got.Coverage); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}

	if len(got.Scenes) != 3 {
		t.Fatalf("got %d scenes, want 3", len(got.Scenes))
	}
	for _, rs := range got.Scenes {
		if rs.Binding.Status != BindingBound {
			t.Errorf("scene %s binding = %s, want bound", rs.Scene.Key, rs.Binding.Status)
		}
		if rs.Source != SourceRegistry {
			t.Errorf("scene %s source = %q", rs.Scene.Key, rs.Source)
		}
	}
}

func TestResolve_TargetMenuMissing(t *testing.T) {
	nodes := []Node{
		{ID: "n1", MenuXMLID: "construction.menu_projects", ActionXMLID: "construction.action_projects"},
	}

	got := Resolve(Input{Nodes: nodes, Registry: testRegistry()})

	byKey := map[string]ResolvedScene{}
	for _, rs := range got.Scenes {
		byKey[rs.Scene.Key] = rs
	}
	ledger := byKey["projects.ledger"]
	if ledger.Binding.Status != BindingTargetMissing {
		t.Errorf("ledger binding = %s, want target_missing", ledger.Binding.Status)
	}
	if ledger.Binding.Ref != "menu:construction.menu_ledger" {
		t.Errorf("ledger ref = %q", ledger.Binding.Ref)
	}
	if byKey["portal.home"].Binding.Status != BindingBound {
		t.Error("route-only scene must always be bound")
	}
}

func TestResolve_Exemptions(t *testing.T) {
	nodes := []Node{
		{ID: "settings", ActionXMLID: "base.action_settings"},
		{ID: "mail", ActionXMLID: "mail.action_inbox"},
		{ID: "n1", ActionXMLID: "construction.action_projects"},
		{ID: "n4", ActionXMLID: "construction.action_unmapped"},
	}

	got := Resolve(Input{
		Nodes:      nodes,
		Registry:   testRegistry(),
		Exemptions: Exemptions{Namespaces: []string{"base."}, Manual: []string{"mail"}},
	})

	want := Coverage{Total: 4, Resolved: 1, AutoExempted: 1, ManualExempted: 1, Ratio: 0.5}
	if diff := cmp.Diff(want, got.Coverage); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].NodeID != "n4" {
		t.Errorf("warnings = %+v, want a single warning for n4", got.Warnings)
	}
	wantExempted := []Exempted{{NodeID: "settings", Kind: ExemptAuto}, {NodeID: "mail", Kind: ExemptManual}}
	if diff := cmp.Diff(wantExempted, got.Exempted); diff != "" {
		t.Errorf("exempted mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_SceneKeyHint(t *testing.T) {
	nodes := []Node{
		{ID: "hinted", ActionXMLID: "custom.action", SceneKey: "portal.home"},
		{ID: "bad-hint", ActionXMLID: "construction.action_projects", SceneKey: "nope"},
	}

	got := Resolve(Input{Nodes: nodes, Registry: testRegistry()})

	if got.Coverage.Resolved != 2 {
		t.Errorf("Resolved = %d, want 2 (hint plus fallback)", got.Coverage.Resolved)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Code != WarnUnknownSceneKeyHint {
		t.Errorf("warnings = %+v, want one unknown hint warning", got.Warnings)
	}
}

func TestResolve_EmptyTreeHasFullCoverage(t *testing.T) {
	got := Resolve(Input{Registry: testRegistry()})
	if got.Coverage.Ratio != 1 {
		t.Errorf("Ratio = %v, want 1", got.Coverage.Ratio)
	}
}

func TestResolve_ReportsQuarantinedScenes(t *testing.T) {
	reg := scene.NewRegistry([]scene.Scene{{Key: "broken"}})

	got := Resolve(Input{Registry: reg})

	if len(got.Warnings) != 1 || got.Warnings[0].Code != WarnSceneQuarantined {
		t.Fatalf("warnings = %+v, want one quarantine warning", got.Warnings)
	}
	if got.Warnings[0].SceneKey != "broken" {
		t.Errorf("SceneKey = %q", got.Warnings[0].SceneKey)
	}
}

func TestResolve_IsDeterministic(t *testing.T) {
	nodes := []Node{
		{ID: "a", ActionXMLID: "x.one"},
		{ID: "b", ActionXMLID: "x.two"},
	}
	first := Resolve(Input{Nodes: nodes, Registry: testRegistry()})
	second := Resolve(Input{Nodes: nodes, Registry: testRegistry()})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("resolution not deterministic (-first +second):\n%s", diff)
	}
}

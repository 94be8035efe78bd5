package diagnostics

import (
	"reflect"
	"sort"

	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
)

// Input contains everything a diagnostics pass needs. All values are pre-fetched.
type Input struct {
	Scenes         []resolver.ResolvedScene
	Baseline       []scene.Scene
	Debt           []DebtEntry
	CriticalScenes []string
	Customizations []Customization
}

// Evaluate runs the diagnostics pass. Identical inputs always yield identical reports.
func Evaluate(in Input) Report {
	critical := toSet(in.CriticalScenes)
	baseline := make(map[string]scene.Scene, len(in.Baseline))
	for _, s := range scene.Canonicalize(in.Baseline) {
		baseline[s.Key] = s
	}
	accepted := customizationIndex(in.Customizations)

	report := Report{
		ResolveErrors: []ResolveError{},
		Drift:         []DriftEntry{},
		Debt:          []DebtEntry{},
		MissingDebt:   []DebtEntry{},
	}

	for _, rs := range in.Scenes {
		severity := SeverityNonCritical
		if critical[rs.Scene.Key] {
			severity = SeverityCritical
		}
		for _, e := range structuralErrors(rs) {
			e.Severity = severity
			report.ResolveErrors = append(report.ResolveErrors, e)
		}

		base, ok := baseline[rs.Scene.Key]
		if !ok {
			continue
		}
		fields := unexplained(diffFields(base, canonicalOne(rs.Scene)), accepted[rs.Scene.Key])
		if len(fields) == 0 {
			continue
		}
		drift := DriftEntry{
			SceneKey: rs.Scene.Key,
			Kind:     DriftFallbackOverride,
			Severity: SeverityInfo,
			Source:   rs.Source,
			Fields:   fields,
		}
		if critical[rs.Scene.Key] {
			drift.Severity = SeverityWarn
		}
		report.Drift = append(report.Drift, drift)
	}

	sort.Slice(report.ResolveErrors, func(i, j int) bool {
		a, b := report.ResolveErrors[i], report.ResolveErrors[j]
		if a.SceneKey != b.SceneKey {
			return a.SceneKey < b.SceneKey
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Ref < b.Ref
	})
	sort.Slice(report.Drift, func(i, j int) bool {
		return report.Drift[i].SceneKey < report.Drift[j].SceneKey
	})

	reconcileDebt(&report, in.Debt)
	return report
}

// reconcileDebt cross-references non-critical findings against the debt baseline.
func reconcileDebt(report *Report, baseline []DebtEntry) {
	known := make(map[string]bool, len(baseline))
	for _, d := range baseline {
		known[d.Key()] = true
	}

	var findings []DebtEntry
	for _, e := range report.ResolveErrors {
		if e.Severity == SeverityNonCritical {
			findings = append(findings, DebtEntry{SceneKey: e.SceneKey, Code: e.Code, Ref: e.Ref})
		}
	}
	for _, d := range report.Drift {
		if d.Severity == SeverityInfo {
			findings = append(findings, DebtEntry{SceneKey: d.SceneKey, Kind: d.Kind, Fields: d.Fields})
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Key() < findings[j].Key() })

	for _, f := range findings {
		if known[f.Key()] {
			report.Debt = append(report.Debt, f)
		} else {
			report.MissingDebt = append(report.MissingDebt, f)
		}
	}
}

func structuralErrors(rs resolver.ResolvedScene) []ResolveError {
	var errs []ResolveError
	s := rs.Scene
	if s.Target == nil || s.Target.IsZero() || rs.Binding.Status == resolver.BindingTargetMissing {
		errs = append(errs, ResolveError{SceneKey: s.Key, Code: CodeTargetMissing, Kind: KindTarget, Ref: rs.Binding.Ref})
	}
	if s.Label == "" {
		errs = append(errs, ResolveError{SceneKey: s.Key, Code: CodeLabelMissing, Kind: KindStructure})
	}
	if s.Route == "" {
		errs = append(errs, ResolveError{SceneKey: s.Key, Code: CodeRouteMissing, Kind: KindStructure})
	}
	if !s.Layout.Kind.Valid() {
		errs = append(errs, ResolveError{SceneKey: s.Key, Code: CodeLayoutKindInvalid, Kind: KindLayout, Ref: string(s.Layout.Kind)})
	}
	if (s.Layout.Kind == scene.LayoutList || s.Layout.Kind == scene.LayoutLedger) &&
		(s.ListProfile == nil || len(s.ListProfile.Columns) == 0) {
		errs = append(errs, ResolveError{SceneKey: s.Key, Code: CodeListColumnsEmpty, Kind: KindListProfile})
	}
	return errs
}

func canonicalOne(s scene.Scene) scene.Scene {
	return scene.Canonicalize([]scene.Scene{s})[0]
}

// diffFields lists the effective fields that differ between two canonical scenes.
func diffFields(base, cur scene.Scene) []string {
	var fields []string
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			fields = append(fields, name)
		}
	}
	add("label", base.Label, cur.Label)
	add("route", base.Route, cur.Route)
	add("target", base.Target, cur.Target)
	add("layout.kind", base.Layout.Kind, cur.Layout.Kind)
	add("layout.sidebar", base.Layout.Sidebar, cur.Layout.Sidebar)
	add("layout.header", base.Layout.Header, cur.Layout.Header)
	bp, cp := profileOrEmpty(base.ListProfile), profileOrEmpty(cur.ListProfile)
	add("list_profile.columns", bp.Columns, cp.Columns)
	add("list_profile.hidden_columns", bp.HiddenColumns, cp.HiddenColumns)
	add("list_profile.column_labels", bp.ColumnLabels, cp.ColumnLabels)
	add("list_profile.default_sort", bp.DefaultSort, cp.DefaultSort)
	add("capabilities", base.Capabilities, cur.Capabilities)
	add("breadcrumbs", base.Breadcrumbs, cur.Breadcrumbs)
	add("tiles", base.Tiles, cur.Tiles)
	sort.Strings(fields)
	return fields
}

func profileOrEmpty(p *scene.ListProfile) scene.ListProfile {
	if p == nil {
		return scene.ListProfile{}
	}
	return *p
}

func unexplained(fields []string, accepted map[string]bool) []string {
	if accepted["*"] {
		return nil
	}
	var out []string
	for _, f := range fields {
		if !accepted[f] {
			out = append(out, f)
		}
	}
	return out
}

func customizationIndex(cs []Customization) map[string]map[string]bool {
	idx := make(map[string]map[string]bool, len(cs))
	for _, c := range cs {
		if idx[c.SceneKey] == nil {
			idx[c.SceneKey] = map[string]bool{}
		}
		for _, f := range c.Fields {
			idx[c.SceneKey][f] = true
		}
	}
	return idx
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

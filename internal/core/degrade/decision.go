package degrade

import (
	"sort"
	"strconv"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/effects"
)

// Skip reasons reported when the controller does not trigger.
const (
	SkipDisabled       = "disabled"
	SkipBelowThreshold = "below_threshold"
	SkipAlreadyRolled  = "rollback_already_active"
	SkipUnsupported    = "unsupported_action"
)

// Observation is what one diagnostics evaluation saw.
type Observation struct {
	CriticalResolveErrors int
	CriticalDriftWarn     int
	MissingDebt           int
	RollbackActive        bool
	ReasonCodes           []string
}

// Observe extracts the controller's observation from a diagnostics report.
func Observe(r diagnostics.Report, rollbackActive bool) Observation {
	return Observation{
		CriticalResolveErrors: r.CriticalResolveErrors(),
		CriticalDriftWarn:     r.CriticalDriftWarn(),
		MissingDebt:           len(r.MissingDebt),
		RollbackActive:        rollbackActive,
		ReasonCodes:           ReasonCodes(r),
	}
}

// Decision is the controller's verdict for one evaluation.
type Decision struct {
	Trigger     bool     `json:"trigger"`
	Skip        string   `json:"skip,omitempty"`
	Action      string   `json:"action,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// Decide evaluates an observation against a policy.
// Thresholds trigger when met or exceeded. An active rollback never retriggers.
func Decide(p Policy, obs Observation) Decision {
	if !p.Enabled {
		return Decision{Skip: SkipDisabled}
	}
	if p.Action != ActionRollbackPinned {
		return Decision{Skip: SkipUnsupported}
	}
	if !breached(p, obs) {
		return Decision{Skip: SkipBelowThreshold}
	}
	if obs.RollbackActive {
		return Decision{Skip: SkipAlreadyRolled, ReasonCodes: obs.ReasonCodes}
	}
	return Decision{Trigger: true, Action: p.Action, ReasonCodes: obs.ReasonCodes}
}

func breached(p Policy, obs Observation) bool {
	t := p.CriticalThreshold
	if t.ResolveErrors > 0 && obs.CriticalResolveErrors >= t.ResolveErrors {
		return true
	}
	if t.DriftWarn > 0 && obs.CriticalDriftWarn >= t.DriftWarn {
		return true
	}
	if p.Regressions.Escalate && p.Regressions.MissingDebt > 0 && obs.MissingDebt >= p.Regressions.MissingDebt {
		return true
	}
	return false
}

// ReasonCodes summarises the findings that can trigger a rollback as a sorted
// list of "<family>:<code>:<count>" codes.
func ReasonCodes(r diagnostics.Report) []string {
	counts := map[string]int{}
	for _, e := range r.ResolveErrors {
		if e.Severity == diagnostics.SeverityCritical {
			counts["resolve_error:"+e.Code]++
		}
	}
	for _, d := range r.Drift {
		if d.Severity == diagnostics.SeverityWarn {
			counts["drift_warn:"+d.Kind]++
		}
	}
	if n := len(r.MissingDebt); n > 0 {
		counts["missing_debt:regression"] = n
	}
	codes := make([]string, 0, len(counts))
	for k, n := range counts {
		codes = append(codes, k+":"+strconv.Itoa(n))
	}
	sort.Strings(codes)
	return codes
}

// PlanInput carries what is needed to plan the effects following a trigger.
type PlanInput struct {
	Policy   Policy
	Decision Decision
	TraceID  string
	Scope    string
}

// PlanFollowUp returns the effects that run after the rollback committed.
// Nothing is planned for a decision that did not trigger.
func PlanFollowUp(in PlanInput) []effects.Effect {
	if !in.Decision.Trigger {
		return nil
	}
	effs := []effects.Effect{
		effects.MetricEffect{Name: "auto_degrade_trigger", Labels: []string{in.Scope}},
		effects.LogEffect{
			Level:   "warn",
			Message: "auto-degrade rolled back to pinned contract",
			Fields: map[string]any{
				"trace_id":     in.TraceID,
				"scope":        in.Scope,
				"reason_codes": in.Decision.ReasonCodes,
			},
		},
	}
	if in.Policy.Notify.Enabled && len(in.Policy.Notify.Channels) > 0 {
		effs = append(effs, effects.NotifyEffect{
			TraceID:     in.TraceID,
			Scope:       in.Scope,
			ActionTaken: in.Decision.Action,
			ReasonCodes: append([]string(nil), in.Decision.ReasonCodes...),
			Channels:    append([]string(nil), in.Policy.Notify.Channels...),
		})
	}
	return effs
}

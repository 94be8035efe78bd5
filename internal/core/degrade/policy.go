// Package degrade decides when diagnostics warrant an automatic rollback to the
// pinned contract and plans the follow-up notification.
// This is part of the Functional Core - no I/O, only pure functions.
package degrade

import (
	"fmt"
	"strings"
)

// ActionRollbackPinned rolls the scope back to the pinned stable contract.
const ActionRollbackPinned = "rollback_pinned"

// Policy configures the controller. It is read fresh on every evaluation.
type Policy struct {
	Enabled           bool             `json:"enabled" yaml:"enabled"`
	CriticalThreshold Threshold        `json:"critical_threshold" yaml:"critical_threshold"`
	Action            string           `json:"action" yaml:"action"`
	Notify            NotifyPolicy     `json:"notify" yaml:"notify"`
	Regressions       RegressionPolicy `json:"regressions" yaml:"regressions"`
}

// Threshold holds the counts at which the controller triggers. Zero disables a metric.
type Threshold struct {
	ResolveErrors int `json:"resolve_errors" yaml:"resolve_errors"`
	DriftWarn     int `json:"drift_warn" yaml:"drift_warn"`
}

// NotifyPolicy configures notification after a trigger.
type NotifyPolicy struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Channels []string `json:"channels" yaml:"channels"`
}

// RegressionPolicy decides whether unaccepted non-critical findings may trigger a rollback.
// MissingDebt is the count of missing debt entries at which they do.
type RegressionPolicy struct {
	Escalate    bool `json:"escalate" yaml:"escalate"`
	MissingDebt int  `json:"missing_debt" yaml:"missing_debt"`
}

// DefaultPolicy returns the policy used when no policy file exists.
func DefaultPolicy() Policy {
	return Policy{
		Enabled: false,
		CriticalThreshold: Threshold{
			ResolveErrors: 1,
			DriftWarn:     1,
		},
		Action: ActionRollbackPinned,
		Notify: NotifyPolicy{Channels: []string{"log"}},
	}
}

// Validate checks a policy for values the controller cannot act on.
func (p Policy) Validate() error {
	if p.CriticalThreshold.ResolveErrors < 0 || p.CriticalThreshold.DriftWarn < 0 {
		return fmt.Errorf("critical_threshold values must not be negative")
	}
	if p.Regressions.MissingDebt < 0 {
		return fmt.Errorf("regressions.missing_debt must not be negative")
	}
	if p.Enabled && p.Action != ActionRollbackPinned {
		return fmt.Errorf("unsupported auto-degrade action %q", p.Action)
	}
	for _, ch := range p.Notify.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("notify channel names must not be empty")
		}
	}
	return nil
}

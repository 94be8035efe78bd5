// Package metrics defines the Prometheus collectors of the engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scenegov"

// Metric names accepted by Inc.
const (
	AutoDegradeTrigger = "auto_degrade_trigger"
	GovernanceAction   = "governance_action"
	NotifyDelivery     = "notify_delivery"
	PackageImport      = "package_import"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	Evaluations         *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	AutoDegradeTriggers *prometheus.CounterVec
	GovernanceActions   *prometheus.CounterVec
	NotifyDeliveries    *prometheus.CounterVec
	PackageImports      *prometheus.CounterVec
	IntentRequests      *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "evaluations_total",
			Help:      "Diagnostics evaluations by health outcome",
		}, []string{"healthy"}),
		EvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in one diagnostics evaluation",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		AutoDegradeTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auto_degrade",
			Name:      "triggers_total",
			Help:      "Automatic rollbacks by scope",
		}, []string{"scope"}),
		GovernanceActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "actions_total",
			Help:      "Governance log entries written by action",
		}, []string{"action"}),
		NotifyDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auto_degrade",
			Name:      "notify_deliveries_total",
			Help:      "Notification deliveries by channel kind and status",
		}, []string{"kind", "status"}),
		PackageImports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packages",
			Name:      "imports_total",
			Help:      "Package imports by mode and outcome",
		}, []string{"mode", "outcome"}),
		IntentRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "requests_total",
			Help:      "Intent calls by intent and result code",
		}, []string{"intent", "code"}),
	}
}

// Inc increments the counter registered under name.
func (m *Metrics) Inc(name string, labels ...string) error {
	if m == nil {
		return nil
	}
	var vec *prometheus.CounterVec
	switch name {
	case AutoDegradeTrigger:
		vec = m.AutoDegradeTriggers
	case GovernanceAction:
		vec = m.GovernanceActions
	case NotifyDelivery:
		vec = m.NotifyDeliveries
	case PackageImport:
		vec = m.PackageImports
	default:
		return fmt.Errorf("unknown metric %q", name)
	}
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return fmt.Errorf("metric %s: %w", name, err)
	}
	c.Inc()
	return nil
}

// ObserveEvaluation records one diagnostics evaluation.
func (m *Metrics) ObserveEvaluation(healthy bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "false"
	if healthy {
		label = "true"
	}
	m.Evaluations.WithLabelValues(label).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// ObserveIntent records one intent call.
func (m *Metrics) ObserveIntent(intent, code string) {
	if m == nil {
		return
	}
	m.IntentRequests.WithLabelValues(intent, code).Inc()
}

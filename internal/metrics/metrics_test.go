package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInc(t *testing.T) {
	m := New(prometheus.NewRegistry())

	if err := m.Inc(AutoDegradeTrigger, "global"); err != nil {
		t.Fatalf("Inc failed: %v", err)
	}
	if err := m.Inc(AutoDegradeTrigger, "global"); err != nil {
		t.Fatalf("Inc failed: %v", err)
	}
	if got := testutil.ToFloat64(m.AutoDegradeTriggers.WithLabelValues("global")); got != 2 {
		t.Errorf("triggers = %v, want 2", got)
	}

	if err := m.Inc("nope"); err == nil {
		t.Error("expected unknown metric error")
	}
	if err := m.Inc(GovernanceAction); err == nil {
		t.Error("expected label cardinality error")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	if err := m.Inc(AutoDegradeTrigger, "global"); err != nil {
		t.Errorf("nil Inc returned %v", err)
	}
	m.ObserveEvaluation(true, time.Millisecond)
	m.ObserveIntent("scene.health", "OK")
}

func TestObserveEvaluation(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEvaluation(false, 2*time.Millisecond)
	m.ObserveEvaluation(true, time.Millisecond)
	m.ObserveEvaluation(true, time.Millisecond)

	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("true")); got != 2 {
		t.Errorf("healthy evaluations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("false")); got != 1 {
		t.Errorf("unhealthy evaluations = %v, want 1", got)
	}
}

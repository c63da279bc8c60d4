package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xfhg/intercept/pkg/config"
)

func TestCollector_RecordRule(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Enabled: true}, nil)

	collector.RecordRule("scan", "critical", map[string]int{"policy": 3, "evaluation-error": 1}, 20*time.Millisecond)
	collector.RecordRule("scan", "critical", map[string]int{"policy": 2}, 10*time.Millisecond)

	if got := testutil.ToFloat64(collector.engine.rulesEvaluated.WithLabelValues("scan", "critical")); got != 2 {
		t.Errorf("rules_evaluated_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.engine.violations.WithLabelValues("scan", "policy")); got != 5 {
		t.Errorf("violations_total{policy} = %v, want 5", got)
	}
	if got := testutil.ToFloat64(collector.engine.violations.WithLabelValues("scan", "evaluation-error")); got != 1 {
		t.Errorf("violations_total{evaluation-error} = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Enabled: false}, nil)
	collector.RecordRun("critical", time.Second)
	collector.RecordTick(4)

	if got := testutil.ToFloat64(collector.engine.runs.WithLabelValues("critical")); got != 0 {
		t.Errorf("disabled collector recorded runs_total = %v", got)
	}
	if got := testutil.ToFloat64(collector.observe.ticks); got != 0 {
		t.Errorf("disabled collector recorded ticks = %v", got)
	}

	var nilCollector *Collector
	nilCollector.RecordRun("clean", time.Second)
	nilCollector.RecordDelivery("delivered")
}

func TestCollector_Observe(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Enabled: true, Namespace: "test"}, nil)

	collector.RecordTick(2)
	collector.RecordTick(0)
	collector.RecordDelivery("delivered")
	collector.RecordDelivery("dropped")
	collector.RecordDelivery("delivered")

	if got := testutil.ToFloat64(collector.observe.ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.observe.newViolations); got != 2 {
		t.Errorf("new violations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.observe.deliveries.WithLabelValues("delivered")); got != 2 {
		t.Errorf("deliveries{delivered} = %v, want 2", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Enabled: true}, nil)
	collector.RecordRun("warning", 50*time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `intercept_runs_total{status="warning"} 1`) {
		t.Errorf("runs_total missing from exposition:\n%s", rec.Body.String())
	}
}

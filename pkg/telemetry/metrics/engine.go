package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks rule evaluation.
type EngineMetrics struct {
	rulesEvaluated *prometheus.CounterVec
	violations     *prometheus.CounterVec
	ruleDuration   *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// NewEngineMetrics creates and registers engine metrics.
func NewEngineMetrics(namespace string, registry *prometheus.Registry) *EngineMetrics {
	m := &EngineMetrics{
		rulesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_evaluated_total",
				Help:      "Total number of rule evaluations by type and resulting severity",
			},
			[]string{"type", "severity"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Total number of violations by rule type and kind",
			},
			[]string{"type", "kind"},
		),
		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_duration_seconds",
				Help:      "Duration of a single rule evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
			},
			[]string{"type"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by exit status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full pipeline run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
			},
		),
	}

	registry.MustRegister(m.rulesEvaluated, m.violations, m.ruleDuration, m.runs, m.runDuration)
	return m
}

// RecordRule records one evaluated rule. violationsByKind counts the rule's
// violations per kind.
func (c *Collector) RecordRule(ruleType, severity string, violationsByKind map[string]int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.engine.rulesEvaluated.WithLabelValues(ruleType, severity).Inc()
	for kind, n := range violationsByKind {
		c.engine.violations.WithLabelValues(ruleType, kind).Add(float64(n))
	}
	c.engine.ruleDuration.WithLabelValues(ruleType).Observe(duration.Seconds())
}

// RecordRun records a completed run.
func (c *Collector) RecordRun(status string, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.engine.runs.WithLabelValues(status).Inc()
	c.engine.runDuration.Observe(duration.Seconds())
}

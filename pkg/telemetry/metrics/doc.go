// Package metrics exposes Prometheus metrics for intercept runs.
//
// A Collector owns a private registry. The engine records one observation per
// evaluated rule and one per run; the observe daemon records ticks, newly
// observed violations and webhook deliveries. Handler serves the registry in
// the Prometheus exposition format and is mounted by the observe command.
//
// All Record methods are no-ops when metrics are disabled, and a nil
// *Collector is valid and also records nothing.
//
// Metrics (namespace "intercept" by default):
//
//	intercept_rules_evaluated_total{type,severity}
//	intercept_violations_total{type,kind}
//	intercept_rule_duration_seconds{type}
//	intercept_runs_total{status}
//	intercept_run_duration_seconds
//	intercept_observe_ticks_total
//	intercept_observe_new_violations_total
//	intercept_webhook_deliveries_total{result}
package metrics

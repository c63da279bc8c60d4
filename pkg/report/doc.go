// Package report turns per-rule verdicts into the run report.
//
// An Aggregator is the single owner of a run's severity: the engine feeds it
// Verdicts from one goroutine and asks it for the final Report. Aggregation
// is order-independent; the Report is always sorted by rule ID and then by
// violation location, and its status is the maximum verdict severity.
//
// Renderers write a Report as colored console text, JSON or SARIF 2.1.0.
package report

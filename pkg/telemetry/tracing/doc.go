// Package tracing provides OpenTelemetry tracing for intercept runs.
//
// A Tracer wraps an SDK tracer provider exporting over OTLP (gRPC or HTTP).
// When tracing is disabled the Tracer is backed by a noop provider, so
// callers can start spans unconditionally.
//
// Span names:
//
//	intercept.run   one per pipeline run
//	intercept.rule  one per evaluated rule, child of intercept.run
//	intercept.tick  one per observe tick
package tracing

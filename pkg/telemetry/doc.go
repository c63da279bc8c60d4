// Package telemetry groups the observability packages used by intercept:
// structured logging, Prometheus metrics and OpenTelemetry tracing.
package telemetry

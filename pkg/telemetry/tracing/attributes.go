package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrRunID        = "intercept.run.id"
	AttrRuleID       = "intercept.rule.id"
	AttrRuleType     = "intercept.rule.type"
	AttrRuleStatus   = "intercept.rule.status"
	AttrSeverity     = "intercept.severity"
	AttrViolations   = "intercept.violations"
	AttrRuleCount    = "intercept.rules"
	AttrInterrupted  = "intercept.interrupted"
	AttrObserveTick  = "intercept.observe.tick"
	AttrPolicySource = "intercept.policy.source"
)

// RuleAttributes returns the attributes set on a rule span at start.
func RuleAttributes(runID string, ruleID int, ruleType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrRuleID, ruleID),
		attribute.String(AttrRuleType, ruleType),
	}
}

// RecordOutcome annotates span with a rule or run outcome.
func RecordOutcome(span trace.Span, status, severity string, violations int) {
	span.SetAttributes(
		attribute.String(AttrRuleStatus, status),
		attribute.String(AttrSeverity, severity),
		attribute.Int(AttrViolations, violations),
	)
}

// SetError marks span as failed.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for the run identifier.
	RunIDKey contextKey = "run_id"

	// RuleIDKey is the context key for the rule being evaluated.
	RuleIDKey contextKey = "rule_id"

	// TickKey is the context key for the observe tick number.
	TickKey contextKey = "tick"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithRuleID adds a rule ID to the context.
func WithRuleID(ctx context.Context, ruleID int) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the rule ID from the context.
func GetRuleID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(RuleIDKey).(int)
	return id, ok
}

// WithTick adds an observe tick number to the context.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, TickKey, tick)
}

// GetTick retrieves the observe tick number from the context.
func GetTick(ctx context.Context) (uint64, bool) {
	tick, ok := ctx.Value(TickKey).(uint64)
	return tick, ok
}

// contextAttrs extracts log fields stored in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if runID := GetRunID(ctx); runID != "" {
		attrs = append(attrs, slog.String(string(RunIDKey), runID))
	}
	if ruleID, ok := GetRuleID(ctx); ok {
		attrs = append(attrs, slog.Int(string(RuleIDKey), ruleID))
	}
	if tick, ok := GetTick(ctx); ok {
		attrs = append(attrs, slog.Uint64(string(TickKey), tick))
	}
	return attrs
}

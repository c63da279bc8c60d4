package engine

import (
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
)

// Enforce resolves the severity of a rule from its violations. Evaluation
// and walk errors count as violations; a rule that could not be evaluated is
// never clean unless its enforcement is disabled.
func Enforce(rule *policy.Rule, violations []policy.Violation) report.Severity {
	switch {
	case rule.IsInformational():
		return report.SeverityClean
	case !rule.Enforcement:
		return report.SeverityClean
	case len(violations) == 0:
		return report.SeverityClean
	case rule.Fatal:
		return report.SeverityCritical
	default:
		return report.SeverityWarning
	}
}

// statusOf reports how an evaluated rule ended. Informational findings alone
// leave a rule clean.
func statusOf(v report.Verdict) report.Status {
	switch {
	case v.HasErrors():
		return report.StatusError
	case v.Count(policy.KindPolicy) > 0:
		return report.StatusViolations
	default:
		return report.StatusClean
	}
}

package engine

import (
	"strings"

	"github.com/xfhg/intercept/pkg/policy"
)

const (
	redactKeep = 4
	redactMask = "****"
)

// shouldRedact reports whether matched content of rule is masked in reports.
// Low confidence findings stay readable for triage.
func shouldRedact(rule *policy.Rule) bool {
	if rule.Type != policy.TypeScan && rule.Type != policy.TypeCollect {
		return false
	}
	return rule.Confidence == policy.ConfidenceHigh || rule.Confidence == policy.ConfidenceMedium
}

// Redact masks s keeping the first and last four characters. Values too
// short to keep both ends are masked entirely.
func Redact(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= 2*redactKeep {
		return redactMask
	}
	return string(r[:redactKeep]) + redactMask + string(r[len(r)-redactKeep:])
}

func redactViolations(rule *policy.Rule, vs []policy.Violation) {
	if !shouldRedact(rule) {
		return
	}
	for i := range vs {
		if vs[i].Kind.IsError() || vs[i].Content == "" {
			continue
		}
		vs[i].Content = Redact(vs[i].Content)
	}
}

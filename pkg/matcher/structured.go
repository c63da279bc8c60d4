package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// StructuredMatcher validates structured configuration files against the
// CUE schema declared in the rule's *_structure field. Each schema issue is
// one violation located by its key path.
type StructuredMatcher struct {
	base
}

// NewStructuredMatcher creates an assure-filetype matcher.
func NewStructuredMatcher(opts Options) *StructuredMatcher {
	opts.setDefaults()
	return &StructuredMatcher{base{opts}}
}

// Evaluate implements Matcher.
func (m *StructuredMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error) {
	binding, ok := rule.Structure.Binding()
	if !ok {
		return Result{}, &MatchError{RuleID: rule.ID, Op: "structure", Err: ErrNoStructure}
	}
	if err := compileSchema(binding.Schema); err != nil {
		return Result{}, &MatchError{RuleID: rule.ID, Op: "compile schema", Err: err}
	}
	filter, err := walker.NewFilter(binding.FilePattern, false)
	if err != nil {
		return Result{}, &MatchError{RuleID: rule.ID, Op: "filepattern", Err: err}
	}

	res, err := forEachArtifact(ctx, src, filter, m.opts.ArtifactConcurrency, func(_ context.Context, a walker.Artifact) ([]policy.Violation, error) {
		return m.checkArtifact(rule, binding, a), nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Artifacts == 0 {
		res.Violations = append(res.Violations, m.violation(rule, policy.KindPolicy,
			policy.Location{Path: RootPath},
			"",
			ruleMessage(rule, fmt.Sprintf("no %s artifact matched %q", binding.Format, binding.FilePattern)),
		))
	}
	return res, nil
}

func (m *StructuredMatcher) checkArtifact(rule *policy.Rule, binding policy.Binding, a walker.Artifact) []policy.Violation {
	content, err := a.ReadAll()
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path},
			&MatchError{RuleID: rule.ID, Path: a.Path, Op: "read", Err: err})}
	}

	data, err := toJSON(binding.Format, content)
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path},
			&MatchError{RuleID: rule.ID, Path: a.Path, Op: "parse " + string(binding.Format), Err: err})}
	}

	issues, err := validateSchema(binding.Schema, data, rule.Structure.Strict)
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path},
			&MatchError{RuleID: rule.ID, Path: a.Path, Op: "validate", Err: err})}
	}

	violations := m.issueViolations(rule, a.Path, issues)
	if rule.Structure.Patch && len(issues) > 0 {
		if v, ok := m.patchArtifact(rule, binding, a.Path, data); ok {
			violations = append(violations, v)
		}
	}
	return violations
}

// patchArtifact writes a copy of the artifact fixed to the schema's concrete
// values into the patch directory. The outcome is recorded as an
// informational violation, or an evaluation error when writing failed.
func (m *StructuredMatcher) patchArtifact(rule *policy.Rule, binding policy.Binding, path string, data []byte) (policy.Violation, bool) {
	loc := policy.Location{Path: path, Logical: "patch"}
	fail := func(err error) (policy.Violation, bool) {
		return m.errorViolation(rule, loc, &MatchError{RuleID: rule.ID, Path: path, Op: "patch", Err: err}), true
	}

	doc, changed, err := patchDocument(binding.Schema, data)
	if err != nil {
		return fail(err)
	}
	if !changed {
		return policy.Violation{}, false
	}
	content, err := encodeDocument(binding.Format, doc)
	if err != nil {
		return fail(err)
	}
	target, err := writePatch(m.opts.PatchDir, path, binding.Format, content)
	if err != nil {
		return fail(err)
	}

	m.opts.Logger.Debug("patched artifact", "rule", rule.ID, "path", path, "patched", target)
	return m.violation(rule, policy.KindInformational, loc, target, "content patched according to schema"), true
}

func (m *StructuredMatcher) issueViolations(rule *policy.Rule, path string, issues []SchemaIssue) []policy.Violation {
	violations := make([]policy.Violation, 0, len(issues))
	for _, issue := range issues {
		msg := issue.Message
		if rule.ErrorMessage != "" {
			msg = rule.ErrorMessage + ": " + msg
		}
		violations = append(violations, m.violation(rule, policy.KindPolicy,
			policy.Location{Path: path, Logical: issue.Path},
			string(issue.Kind),
			strings.TrimSpace(msg),
		))
	}
	return violations
}

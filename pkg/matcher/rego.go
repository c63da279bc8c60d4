package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// RegoMatcher evaluates an OPA Rego query against every artifact.
//
// JSON artifacts are passed as input directly; anything else is passed as
// {"content": ..., "lines": [...], "path": ...}. The query result decides
// compliance:
//
//	true                         compliant
//	false, no result             violation
//	{"allow": bool, "violations": [...]}
//	                             compliant when allow; otherwise one
//	                             violation per listed message
//	[...] (deny set)             one violation per element
type RegoMatcher struct {
	base
}

// NewRegoMatcher creates an assure-rego matcher.
func NewRegoMatcher(opts Options) *RegoMatcher {
	opts.setDefaults()
	return &RegoMatcher{base{opts}}
}

// Evaluate implements Matcher.
func (m *RegoMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error) {
	query, err := m.prepare(ctx, rule)
	if err != nil {
		return Result{}, err
	}

	filter, err := walker.NewFilter(rule.Rego.FilePattern, false)
	if err != nil {
		return Result{}, &MatchError{RuleID: rule.ID, Op: "filepattern", Err: err}
	}

	return forEachArtifact(ctx, src, filter, m.opts.ArtifactConcurrency, func(ctx context.Context, a walker.Artifact) ([]policy.Violation, error) {
		return m.evalArtifact(ctx, rule, query, a), nil
	})
}

func (m *RegoMatcher) prepare(ctx context.Context, rule *policy.Rule) (rego.PreparedEvalQuery, error) {
	spec := rule.Rego
	fail := func(op string, err error) (rego.PreparedEvalQuery, error) {
		return rego.PreparedEvalQuery{}, &MatchError{RuleID: rule.ID, Path: spec.PolicyFile, Op: op, Err: err}
	}

	source, err := os.ReadFile(m.resolve(spec.PolicyFile))
	if err != nil {
		return fail("read policy", err)
	}
	module, err := ast.ParseModule(spec.PolicyFile, string(source))
	if err != nil {
		return fail("parse policy", err)
	}
	pkg := module.Package.Path.String()
	if spec.Query != pkg && !strings.HasPrefix(spec.Query, pkg+".") {
		return fail("query", fmt.Errorf("%w: query %q, package %q", ErrPackageMismatch, spec.Query, pkg))
	}

	data := map[string]any{}
	if spec.PolicyData != "" {
		raw, err := os.ReadFile(m.resolve(spec.PolicyData))
		if err != nil {
			return fail("read data", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return fail("parse data", err)
		}
	}

	query, err := rego.New(
		rego.Query(spec.Query),
		rego.Module(spec.PolicyFile, string(source)),
		rego.Store(inmem.NewFromObject(data)),
	).PrepareForEval(ctx)
	if err != nil {
		return fail("prepare", err)
	}
	return query, nil
}

func (m *RegoMatcher) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.opts.PolicyDir == "" {
		return path
	}
	return filepath.Join(m.opts.PolicyDir, path)
}

func (m *RegoMatcher) evalArtifact(ctx context.Context, rule *policy.Rule, query rego.PreparedEvalQuery, a walker.Artifact) []policy.Violation {
	loc := policy.Location{Path: a.Path, Logical: rule.Rego.Query}

	content, err := a.ReadAll()
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, loc, &MatchError{RuleID: rule.ID, Path: a.Path, Op: "read", Err: err})}
	}

	rs, err := query.Eval(ctx, rego.EvalInput(regoInput(a.Path, content)))
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, loc, &MatchError{RuleID: rule.ID, Path: a.Path, Op: "eval", Err: err})}
	}

	messages, err := interpret(rs)
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, loc, &MatchError{RuleID: rule.ID, Path: a.Path, Op: "eval", Err: err})}
	}

	violations := make([]policy.Violation, 0, len(messages))
	for _, msg := range messages {
		violations = append(violations, m.violation(rule, policy.KindPolicy, loc, msg, ruleMessage(rule, "policy denied: "+msg)))
	}
	return violations
}

func regoInput(path string, content []byte) any {
	if json.Valid(content) {
		var v any
		if err := json.Unmarshal(content, &v); err == nil {
			return v
		}
	}
	text := string(content)
	lines := strings.Split(text, "\n")
	return map[string]any{
		"content": text,
		"lines":   lines,
		"blocks":  textBlocks(lines),
		"path":    path,
	}
}

// textBlocks groups brace-delimited configuration, as in nginx or HCL, into
// top-level blocks. Each block carries the text before its opening brace as
// directive and its inner lines, nested blocks included, as block.
func textBlocks(lines []string) []map[string]any {
	blocks := []map[string]any{}
	var (
		directive string
		body      []string
		depth     int
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasSuffix(trimmed, "{"):
			if depth == 0 {
				directive = strings.TrimSpace(strings.TrimSuffix(trimmed, "{"))
				body = []string{}
			} else {
				body = append(body, line)
			}
			depth++
		case trimmed == "}" && depth > 0:
			depth--
			if depth == 0 {
				blocks = append(blocks, map[string]any{"directive": directive, "block": body})
				continue
			}
			body = append(body, line)
		case depth > 0:
			body = append(body, line)
		}
	}
	return blocks
}

// interpret returns one message per violation found in rs.
func interpret(rs rego.ResultSet) ([]string, error) {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return []string{"query returned no result"}, nil
	}

	switch v := rs[0].Expressions[0].Value.(type) {
	case bool:
		if v {
			return nil, nil
		}
		return []string{"query evaluated to false"}, nil
	case map[string]any:
		allow, ok := v["allow"].(bool)
		if !ok {
			return nil, fmt.Errorf("result object has no boolean allow field")
		}
		if allow {
			return nil, nil
		}
		list, _ := v["violations"].([]any)
		if len(list) == 0 {
			return []string{"allow is false"}, nil
		}
		return stringify(list), nil
	case []any:
		return stringify(v), nil
	default:
		return nil, fmt.Errorf("unexpected result type %T", v)
	}
}

func stringify(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			out = append(out, fmt.Sprint(item))
			continue
		}
		out = append(out, string(b))
	}
	return out
}

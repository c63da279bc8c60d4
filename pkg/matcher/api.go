package matcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

const (
	placeholderPath    = "{{path}}"
	placeholderContent = "{{content}}"
)

// APIMatcher calls an HTTP endpoint and checks the response. Endpoints or
// bodies referencing {{path}} or {{content}} are called once per artifact,
// all others once per rule.
type APIMatcher struct {
	base
}

// NewAPIMatcher creates an assure-api matcher.
func NewAPIMatcher(opts Options) *APIMatcher {
	opts.setDefaults()
	return &APIMatcher{base{opts}}
}

// responseChecks are compiled once per rule and shared by every request.
type responseChecks struct {
	patterns []*regexp.Regexp
	assert   *assertion
	schema   string
	strict   bool
}

// Evaluate implements Matcher.
func (m *APIMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error) {
	checks, err := m.prepare(rule)
	if err != nil {
		return Result{}, err
	}
	client := m.client(rule.API)

	if !rule.API.Templated() {
		violations := m.call(ctx, client, rule, checks, walker.Artifact{}, nil)
		res := Result{Violations: violations}
		res.sort()
		return res, nil
	}

	needContent := strings.Contains(rule.API.Endpoint, placeholderContent) || strings.Contains(rule.API.Body, placeholderContent)
	filter, err := walker.NewFilter(rule.FilePattern, needContent)
	if err != nil {
		return Result{}, &MatchError{RuleID: rule.ID, Op: "filepattern", Err: err}
	}

	return forEachArtifact(ctx, src, filter, m.opts.ArtifactConcurrency, func(ctx context.Context, a walker.Artifact) ([]policy.Violation, error) {
		var content []byte
		if needContent {
			var err error
			if content, err = a.ReadAll(); err != nil {
				return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path},
					&MatchError{RuleID: rule.ID, Path: a.Path, Op: "read", Err: err})}, nil
			}
		}
		return m.call(ctx, client, rule, checks, a, content), nil
	})
}

func (m *APIMatcher) prepare(rule *policy.Rule) (*responseChecks, error) {
	patterns, err := rule.Regexps()
	if err != nil {
		return nil, &MatchError{RuleID: rule.ID, Op: "compile", Err: err}
	}
	checks := &responseChecks{patterns: patterns, strict: rule.Structure.Strict}

	if rule.API.Assert != "" {
		if checks.assert, err = compileAssertion(rule.API.Assert); err != nil {
			return nil, &MatchError{RuleID: rule.ID, Op: "compile api_assert", Err: err}
		}
	}
	if schema := rule.Structure.JSONStructure; schema != "" {
		if err := compileSchema(schema); err != nil {
			return nil, &MatchError{RuleID: rule.ID, Op: "compile schema", Err: err}
		}
		checks.schema = schema
	}
	return checks, nil
}

func (m *APIMatcher) client(spec policy.APISpec) *resty.Client {
	client := resty.New().
		SetTimeout(m.opts.API.Timeout).
		SetRetryCount(m.opts.API.Retries).
		SetRetryWaitTime(m.opts.API.RetryWait).
		SetHeader("User-Agent", "intercept").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil && r.StatusCode() >= 500
		})
	if spec.Insecure {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return client
}

// call performs one request and converts every failed check to a violation.
func (m *APIMatcher) call(ctx context.Context, client *resty.Client, rule *policy.Rule, checks *responseChecks, a walker.Artifact, content []byte) []policy.Violation {
	spec := rule.API
	method := strings.ToUpper(spec.Method)
	endpoint := expand(spec.Endpoint, a.Path, content, url.QueryEscape)
	body := expand(spec.Body, a.Path, content, nil)

	at := func(aspect string) policy.Location {
		return policy.Location{Path: a.Path, Logical: fmt.Sprintf("%s %s [%s]", method, spec.Endpoint, aspect)}
	}

	req := client.R().SetContext(ctx)
	if spec.Trace {
		req.EnableTrace()
	}
	if body != "" {
		req.SetBody(body)
	}
	if err := m.authenticate(req, spec); err != nil {
		return []policy.Violation{m.errorViolation(rule, at("auth"), &MatchError{RuleID: rule.ID, Op: "auth", Err: err})}
	}

	resp, err := req.Execute(method, endpoint)
	trace := ""
	if spec.Trace {
		trace = m.dump(method, endpoint, resp)
	}

	if err != nil {
		v := m.errorViolation(rule, at("request"), &NetworkError{
			Method:   method,
			Endpoint: endpoint,
			Attempts: attempts(resp),
			Err:      err,
		})
		v.Trace = trace
		return []policy.Violation{v}
	}

	// A reachable endpoint answering non-2xx fails the assurance itself.
	if !resp.IsSuccess() {
		status := &NetworkError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Attempts: attempts(resp),
			Err:      ErrUnexpectedStatus,
		}
		v := m.violation(rule, policy.KindPolicy, at("status"),
			m.truncate(resp.Body()),
			ruleMessage(rule, status.Error()),
		)
		v.Trace = trace
		return []policy.Violation{v}
	}

	var violations []policy.Violation
	respBody := resp.Body()

	if len(checks.patterns) > 0 && !slices.ContainsFunc(checks.patterns, func(re *regexp.Regexp) bool { return re.Match(respBody) }) {
		violations = append(violations, m.violation(rule, policy.KindPolicy, at("body"),
			m.truncate(respBody),
			ruleMessage(rule, "required pattern not found in response body"),
		))
	}

	if checks.schema != "" {
		issues, err := validateSchema(checks.schema, respBody, checks.strict)
		if err != nil {
			violations = append(violations, m.errorViolation(rule, at("schema"), &MatchError{RuleID: rule.ID, Op: "validate response", Err: err}))
		}
		for _, issue := range issues {
			violations = append(violations, m.violation(rule, policy.KindPolicy, at("schema:"+issue.Path),
				string(issue.Kind),
				ruleMessage(rule, issue.Message),
			))
		}
	}

	if checks.assert != nil {
		ok, err := checks.assert.eval(resp.StatusCode(), resp.Header(), respBody)
		switch {
		case err != nil:
			violations = append(violations, m.errorViolation(rule, at("assert"), &MatchError{RuleID: rule.ID, Op: "api_assert", Err: err}))
		case !ok:
			violations = append(violations, m.violation(rule, policy.KindPolicy, at("assert"),
				spec.Assert,
				ruleMessage(rule, "response assertion evaluated to false"),
			))
		}
	}

	for i := range violations {
		violations[i].Trace = trace
	}
	return violations
}

func (m *APIMatcher) authenticate(req *resty.Request, spec policy.APISpec) error {
	switch spec.Auth {
	case "", policy.AuthNone:
		return nil
	case policy.AuthBasic:
		value, err := m.credential(spec.BasicEnv)
		if err != nil {
			return err
		}
		user, pass, ok := strings.Cut(value, ":")
		if !ok {
			return fmt.Errorf("basic credential must be user:pass")
		}
		req.SetBasicAuth(user, pass)
		return nil
	case policy.AuthToken:
		token, err := m.credential(spec.TokenEnv)
		if err != nil {
			return err
		}
		req.SetAuthToken(token)
		return nil
	default:
		return fmt.Errorf("unsupported auth mode %q", spec.Auth)
	}
}

// credential reads INTERCEPT_<name>. A name already carrying the prefix is
// used as is.
func (m *APIMatcher) credential(name string) (string, error) {
	prefix := m.opts.API.CredentialPrefix
	key := strings.ToUpper(name)
	if !strings.HasPrefix(key, prefix) {
		key = prefix + key
	}
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrCredentialMissing, key)
	}
	return value, nil
}

func (m *APIMatcher) truncate(b []byte) string {
	if len(b) > m.opts.API.MaxBodyBytes {
		return string(b[:m.opts.API.MaxBodyBytes]) + "...(truncated)"
	}
	return string(b)
}

func (m *APIMatcher) dump(method, endpoint string, resp *resty.Response) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "> %s %s\n", method, endpoint)
	if resp == nil || resp.RawResponse == nil {
		sb.WriteString("< no response\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "< %s (attempt %d)\n", resp.Status(), attempts(resp))
	keys := make([]string, 0, len(resp.Header()))
	for k := range resp.Header() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		value := strings.Join(resp.Header()[k], ", ")
		if strings.EqualFold(k, "Set-Cookie") || strings.EqualFold(k, "Authorization") {
			value = "***"
		}
		fmt.Fprintf(&sb, "< %s: %s\n", k, value)
	}
	if resp.Request != nil {
		ti := resp.Request.TraceInfo()
		fmt.Fprintf(&sb, "dns=%s conn=%s tls=%s server=%s total=%s\n",
			ti.DNSLookup, ti.ConnTime, ti.TLSHandshake, ti.ServerTime, ti.TotalTime)
	}
	sb.WriteString("\n")
	sb.WriteString(m.truncate(resp.Body()))
	return sb.String()
}

func attempts(resp *resty.Response) int {
	if resp == nil || resp.Request == nil || resp.Request.Attempt == 0 {
		return 1
	}
	return resp.Request.Attempt
}

// expand substitutes the artifact placeholders. escape, when set, is applied
// to substituted values.
func expand(tmpl, path string, content []byte, escape func(string) string) string {
	if tmpl == "" || (!strings.Contains(tmpl, placeholderPath) && !strings.Contains(tmpl, placeholderContent)) {
		return tmpl
	}
	if escape == nil {
		escape = func(s string) string { return s }
	}
	return strings.NewReplacer(
		placeholderPath, escape(path),
		placeholderContent, escape(string(content)),
	).Replace(tmpl)
}

// decodeJSON returns the parsed body, or nil when it is not JSON.
func decodeJSON(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

package matcher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xfhg/intercept/pkg/policy"
)

func apiRule(endpoint string) *policy.Rule {
	return &policy.Rule{
		ID:          20,
		Type:        policy.TypeAssureAPI,
		Enforcement: true,
		API:         policy.APISpec{Endpoint: endpoint, Method: "GET"},
	}
}

func TestAPIMatcher_Checks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "ok", "version": 3, "features": {"tls": true}}`)
	}))
	defer server.Close()

	tests := []struct {
		name     string
		patterns []string
		assert   string
		schema   string
		want     []string
	}{
		{name: "pattern present", patterns: []string{`"status":\s*"ok"`}},
		{name: "pattern absent", patterns: []string{`"status":\s*"degraded"`}, want: []string{"body"}},
		{name: "assert true", assert: `status == 200 && json.version >= 3.0 && headers["Content-Type"] == "application/json"`},
		{name: "assert false", assert: `json.features.tls == false`, want: []string{"assert"}},
		{name: "schema missing key", schema: "status: string\nregion: string\n", want: []string{"schema:region"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := apiRule(server.URL + "/health")
			rule.Patterns = tt.patterns
			rule.API.Assert = tt.assert
			rule.Structure.JSONStructure = tt.schema

			res := evaluate(t, NewAPIMatcher(testOptions()), rule, newSource(t, nil))

			var aspects []string
			for _, v := range res.Violations {
				if v.Kind != policy.KindPolicy {
					t.Errorf("kind = %q, want policy: %s", v.Kind, v.Message)
				}
				l := v.Location.Logical
				aspects = append(aspects, l[strings.LastIndex(l, "[")+1:len(l)-1])
			}
			if !slices.Equal(aspects, tt.want) {
				t.Errorf("aspects = %v, want %v", aspects, tt.want)
			}
		})
	}
}

func TestAPIMatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	opts := testOptions()
	opts.API.Timeout = 50 * time.Millisecond
	rule := apiRule(server.URL)

	res := evaluate(t, NewAPIMatcher(opts), rule, newSource(t, nil))

	if len(res.Violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(res.Violations))
	}
	v := res.Violations[0]
	if v.Kind != policy.KindEvaluationError {
		t.Errorf("kind = %q, want evaluation-error", v.Kind)
	}
	if !strings.Contains(v.Location.Logical, "[request]") {
		t.Errorf("location = %s", v.Location)
	}
}

func TestAPIMatcher_StatusAndRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	opts := testOptions()
	opts.API.Retries = 2
	opts.API.RetryWait = time.Millisecond
	res := evaluate(t, NewAPIMatcher(opts), apiRule(server.URL), newSource(t, nil))

	if len(res.Violations) != 1 || res.Violations[0].Kind != policy.KindPolicy {
		t.Fatalf("violations = %+v, want one policy violation", res.Violations)
	}
	if !strings.Contains(res.Violations[0].Location.Logical, "[status]") {
		t.Errorf("location = %s", res.Violations[0].Location)
	}
	if !strings.Contains(res.Violations[0].Message, "status 503") {
		t.Errorf("message = %q", res.Violations[0].Message)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestAPIMatcher_Auth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); ok && user == "svc" && pass == "pw" {
			fmt.Fprint(w, "basic-ok")
			return
		}
		if r.Header.Get("Authorization") == "Bearer tok123" {
			fmt.Fprint(w, "token-ok")
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	t.Setenv("INTERCEPT_SVC_BASIC", "svc:pw")
	t.Setenv("INTERCEPT_SVC_TOKEN", "tok123")

	tests := []struct {
		name string
		spec policy.APISpec
		want policy.ViolationKind
	}{
		{name: "basic", spec: policy.APISpec{Auth: policy.AuthBasic, BasicEnv: "svc_basic"}},
		{name: "token", spec: policy.APISpec{Auth: policy.AuthToken, TokenEnv: "INTERCEPT_SVC_TOKEN"}},
		{name: "none", spec: policy.APISpec{Auth: policy.AuthNone}, want: policy.KindPolicy},
		{name: "missing credential", spec: policy.APISpec{Auth: policy.AuthToken, TokenEnv: "absent"}, want: policy.KindEvaluationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := apiRule(server.URL)
			tt.spec.Endpoint, tt.spec.Method = server.URL, "GET"
			rule.API = tt.spec
			res := evaluate(t, NewAPIMatcher(testOptions()), rule, newSource(t, nil))

			if tt.want == "" {
				if len(res.Violations) != 0 {
					t.Errorf("violations = %+v, want none", res.Violations)
				}
				return
			}
			if len(res.Violations) != 1 || res.Violations[0].Kind != tt.want {
				t.Errorf("violations = %+v, want one %s", res.Violations, tt.want)
			}
		})
	}
}

func TestAPIMatcher_TemplatedPerArtifact(t *testing.T) {
	var seen atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Add(1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "approved") {
			fmt.Fprint(w, "ALLOW")
			return
		}
		fmt.Fprint(w, "DENY")
	}))
	defer server.Close()

	rule := apiRule(server.URL + "/check?file={{path}}")
	rule.API.Method = "POST"
	rule.API.Body = "{{content}}"
	rule.API.Trace = true
	rule.FilePattern = `\.txt$`
	rule.Patterns = []string{`ALLOW`}

	src := newSource(t, map[string]string{
		"a.txt":  "approved",
		"b.txt":  "rejected",
		"c.conf": "approved",
	})
	res := evaluate(t, NewAPIMatcher(testOptions()), rule, src)

	if got := seen.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if !slices.Equal(paths(res.Violations), []string{"b.txt"}) {
		t.Fatalf("violations = %v, want [b.txt]", paths(res.Violations))
	}
	trace := res.Violations[0].Trace
	if !strings.Contains(trace, "> POST "+server.URL+"/check?file=b.txt") || !strings.Contains(trace, "DENY") {
		t.Errorf("trace = %q", trace)
	}
}

func TestAPIMatcher_InvalidAssert(t *testing.T) {
	rule := apiRule("http://127.0.0.1:0")
	rule.API.Assert = "status =="
	_, err := NewAPIMatcher(testOptions()).Evaluate(t.Context(), rule, newSource(t, nil))

	var me *MatchError
	if !errors.As(err, &me) {
		t.Errorf("error = %v, want MatchError", err)
	}
}

func TestNetworkError(t *testing.T) {
	err := &NetworkError{Method: "GET", Endpoint: "https://x", Status: 502, Attempts: 3, Err: ErrUnexpectedStatus}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Error("errors.Is(ErrUnexpectedStatus) = false")
	}
	if got := err.Error(); got != "GET https://x: status 502 after 3 attempt(s): unexpected response status" {
		t.Errorf("Error() = %q", got)
	}
}

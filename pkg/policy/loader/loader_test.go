package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xfhg/intercept/pkg/policy"
)

const validPolicy = `
Banner: |
  intercept audit
ExitCritical: "Critical irregularities found"
ExitWarning: "Irregularities found"
ExitClean: "Clean report"
Exceptions: [3]
Rules:
  - ID: 1
    Name: credentials in URL
    Type: SCAN
    Fatal: true
    Enforcement: true
    Environment: all
    Confidence: HIGH
    Patterns:
      - '^(.*)://([^:]*):([^@]*)@(.*)$'
  - id: 2
    name: service port declared
    type: assure-filetype
    enforcement: true
    yml_filepattern: '\.ya?ml$'
    yml_structure: |
      server: port: int
  - id: 3
    name: health endpoint
    type: assure-api
    api_endpoint: https://example.com/health
    api_request: get
    api_auth: Token
    api_auth_token: HEALTH_TOKEN
  - id: 4
    name: rego
    type: assure-rego
    rego_filepattern: '\.json$'
    rego_policy_file: policy.rego
    rego_policy_query: data.example.allow
  - id: 5
    name: inventory
    type: collect
    subtype: scan
    patterns: ['TODO']
`

func TestLoader_Parse(t *testing.T) {
	doc, err := New(0, nil).Parse([]byte(validPolicy), "policy.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(doc.Rules) != 5 {
		t.Fatalf("got %d rules, want 5", len(doc.Rules))
	}
	if doc.ExitCritical != "Critical irregularities found" {
		t.Errorf("ExitCritical = %q", doc.ExitCritical)
	}
	if !doc.IsExcepted(3) {
		t.Error("rule 3 should be excepted")
	}

	r := doc.Rules[0]
	if r.Type != policy.TypeScan {
		t.Errorf("Type = %q, want scan", r.Type)
	}
	if r.Confidence != policy.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", r.Confidence)
	}
	if !r.Fatal || !r.Enforcement {
		t.Error("Fatal and Enforcement should decode from capitalised keys")
	}
	res, err := r.Regexps()
	if err != nil || len(res) != 1 {
		t.Fatalf("Regexps() = %v, %v", res, err)
	}

	api := doc.Rules[2].API
	if api.Method != "GET" || api.Auth != policy.AuthToken || api.TokenEnv != "HEALTH_TOKEN" {
		t.Errorf("API spec not normalized: %+v", api)
	}

	b, ok := doc.Rules[1].Structure.Binding()
	if !ok || b.Format != policy.FormatYAML {
		t.Errorf("Structure binding = %+v, %v", b, ok)
	}
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want IssueKind
	}{
		{
			name: "duplicate id",
			doc: `rules:
  - {id: 1, type: scan, patterns: [a]}
  - {id: 1, type: scan, patterns: [b]}`,
			want: IssueDuplicateID,
		},
		{
			name: "scan without patterns",
			doc:  `rules: [{id: 1, type: scan}]`,
			want: IssueMissingField,
		},
		{
			name: "assure-regex without patterns",
			doc:  `rules: [{id: 1, type: assure-regex}]`,
			want: IssueMissingField,
		},
		{
			name: "invalid regex",
			doc:  `rules: [{id: 1, type: scan, patterns: ['([']}]`,
			want: IssueInvalidRegex,
		},
		{
			name: "filetype with two formats",
			doc: `rules:
  - id: 1
    type: assure-filetype
    yml_filepattern: a
    yml_structure: "a: int"
    json_filepattern: b
    json_structure: "b: int"`,
			want: IssueMissingField,
		},
		{
			name: "api without endpoint",
			doc:  `rules: [{id: 1, type: assure-api, api_request: GET}]`,
			want: IssueMissingField,
		},
		{
			name: "rego without query",
			doc:  `rules: [{id: 1, type: assure-rego, rego_policy_file: p.rego, rego_filepattern: x}]`,
			want: IssueMissingField,
		},
		{
			name: "rego with generic filepattern only",
			doc:  `rules: [{id: 1, type: assure-rego, rego_policy_file: p.rego, rego_policy_query: data.p.allow, filepattern: x}]`,
			want: IssueMissingField,
		},
		{
			name: "invalid schedule",
			doc:  `rules: [{id: 1, type: scan, patterns: [a], schedule: "every tuesday"}]`,
			want: IssueInvalidCron,
		},
		{
			name: "unknown type",
			doc:  `rules: [{id: 1, type: grep}]`,
			want: IssueUnknownType,
		},
		{
			name: "collect with unknown subtype",
			doc:  `rules: [{id: 1, type: collect, subtype: runtime}]`,
			want: IssueUnknownType,
		},
		{
			name: "missing id",
			doc:  `rules: [{type: scan, patterns: [a]}]`,
			want: IssueInvalidRuleID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(0, nil).Parse([]byte(tt.doc), "test.yaml")
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error %v is not a validation error", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if !ve.Has(tt.want) {
				t.Errorf("issues %v do not include %s", ve.Issues, tt.want)
			}
		})
	}
}

func TestValidate_CollectsEveryIssue(t *testing.T) {
	doc := `rules:
  - {id: 1, type: scan}
  - {id: 1, type: assure-regex, patterns: ['([']}`

	_, err := New(0, nil).Parse([]byte(doc), "multi.yaml")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, kind := range []IssueKind{IssueMissingField, IssueDuplicateID, IssueInvalidRegex} {
		if !ve.Has(kind) {
			t.Errorf("missing issue %s in %v", kind, ve.Issues)
		}
	}
}

func TestValidate_IgnoresFieldsOfOtherTypes(t *testing.T) {
	doc := `rules:
  - id: 1
    type: scan
    patterns: [secret]
    api_auth: carrier-pigeon
    yml_structure: "a: int"
    json_structure: "b: int"`

	if _, err := New(0, nil).Parse([]byte(doc), "scan.yaml"); err != nil {
		t.Errorf("unused fields should be ignored, got %v", err)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(validPolicy), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := New(0, nil).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if doc.Path != path {
		t.Errorf("Path = %q, want %q", doc.Path, path)
	}

	_, err = New(0, nil).LoadFile(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("missing file should yield *LoadError, got %v", err)
	}

	_, err = New(8, nil).LoadFile(path)
	if !errors.As(err, &le) {
		t.Errorf("oversized file should yield *LoadError, got %v", err)
	}
}

func TestLoader_ParseErrors(t *testing.T) {
	_, err := New(0, nil).Parse([]byte("rules: [id: 1"), "broken.yaml")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("malformed YAML should yield *ParseError, got %v", err)
	}

	_, err = New(0, nil).Parse([]byte("rules:\n  - id: abc\n"), "types.yaml")
	if !errors.As(err, &pe) {
		t.Fatalf("bad field type should yield *ParseError, got %v", err)
	}
	if pe.Line != 2 {
		t.Errorf("ParseError.Line = %d, want 2", pe.Line)
	}
}

package matcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-ini/ini"
	"gopkg.in/yaml.v3"

	"github.com/xfhg/intercept/pkg/policy"
)

const dbSchema = `
database: {
	host: string
	port: int
}
debug: bool
`

func TestStructuredMatcher_Formats(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		spec    policy.StructureSpec
		want    []string
		kinds   []string
		errKind bool
	}{
		{
			name:  "yaml valid",
			files: map[string]string{"app.yaml": "database:\n  host: db\n  port: 5432\ndebug: false\n"},
			spec:  policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: dbSchema},
		},
		{
			name:  "yaml missing key",
			files: map[string]string{"app.yaml": "database:\n  host: db\ndebug: false\n"},
			spec:  policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: dbSchema},
			want:  []string{"database.port"},
			kinds: []string{"missing"},
		},
		{
			name:  "json type mismatch",
			files: map[string]string{"app.json": `{"database": {"host": "db", "port": "5432"}, "debug": true}`},
			spec:  policy.StructureSpec{JSONFilePattern: `\.json$`, JSONStructure: dbSchema},
			want:  []string{"database.port"},
			kinds: []string{"mismatch"},
		},
		{
			name:  "toml extra key ignored when not strict",
			files: map[string]string{"app.toml": "debug = true\nextra = 1\n[database]\nhost = \"db\"\nport = 5432\n"},
			spec:  policy.StructureSpec{TOMLFilePattern: `\.toml$`, TOMLStructure: dbSchema},
		},
		{
			name:  "toml extra key in strict mode",
			files: map[string]string{"app.toml": "debug = true\nextra = 1\n[database]\nhost = \"db\"\nport = 5432\nuser = \"x\"\n"},
			spec:  policy.StructureSpec{TOMLFilePattern: `\.toml$`, TOMLStructure: dbSchema, Strict: true},
			want:  []string{"database.user", "extra"},
			kinds: []string{"extra", "extra"},
		},
		{
			name:  "ini sections",
			files: map[string]string{"app.ini": "mode = prod\n[server]\nhost = web\n"},
			spec:  policy.StructureSpec{INIFilePattern: `\.ini$`, INIStructure: "mode: \"prod\" | \"dev\"\nserver: {host: string, port: string}\n"},
			want:  []string{"server.port"},
			kinds: []string{"missing"},
		},
		{
			name:    "unparsable yaml",
			files:   map[string]string{"bad.yaml": "a: [unclosed\n"},
			spec:    policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: dbSchema},
			want:    []string{""},
			errKind: true,
		},
		{
			name:  "no matching file",
			files: map[string]string{"other.txt": "x"},
			spec:  policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: dbSchema},
			want:  []string{""},
			kinds: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &policy.Rule{ID: 10, Type: policy.TypeAssureFiletype, Enforcement: true, Structure: tt.spec}
			res := evaluate(t, NewStructuredMatcher(testOptions()), rule, newSource(t, tt.files))

			if got := logicals(res.Violations); !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Fatalf("violation paths = %q, want %q (%+v)", got, tt.want, res.Violations)
			}
			for i, v := range res.Violations {
				if tt.errKind {
					if v.Kind != policy.KindEvaluationError {
						t.Errorf("kind = %q, want evaluation-error", v.Kind)
					}
					continue
				}
				if v.Kind != policy.KindPolicy {
					t.Errorf("kind = %q, want policy", v.Kind)
				}
				if i < len(tt.kinds) && v.Content != tt.kinds[i] {
					t.Errorf("issue kind = %q, want %q", v.Content, tt.kinds[i])
				}
			}
		})
	}
}

func TestStructuredMatcher_InvalidRule(t *testing.T) {
	src := newSource(t, map[string]string{"a.yaml": "a: 1"})
	m := NewStructuredMatcher(testOptions())

	if _, err := m.Evaluate(t.Context(), &policy.Rule{ID: 1, Type: policy.TypeAssureFiletype}, src); err == nil {
		t.Error("expected error without structure")
	}
	bad := &policy.Rule{ID: 1, Type: policy.TypeAssureFiletype, Structure: policy.StructureSpec{YMLFilePattern: `.`, YMLStructure: "a: {"}}
	if _, err := m.Evaluate(t.Context(), bad, src); err == nil {
		t.Error("expected error for invalid CUE schema")
	}
}

func TestToJSON_YAMLNonStringKeys(t *testing.T) {
	out, err := toJSON(policy.FormatYAML, []byte("1: one\ntrue: yes\n"))
	if err != nil {
		t.Fatalf("toJSON() error = %v", err)
	}
	if string(out) != `{"1":"one","true":"yes"}` {
		t.Errorf("toJSON() = %s", out)
	}
}

const serverSchema = `
server: {
	port: int
	tls:  true
	mode: *"strict" | string
}
`

func TestStructuredMatcher_Patch(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		spec    policy.StructureSpec
		patched string
		check   func(t *testing.T, content []byte)
	}{
		{
			name:    "yaml fixed to schema values",
			files:   map[string]string{"svc/app.yaml": "server:\n  port: 80\n  tls: false\n"},
			spec:    policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: serverSchema, Patch: true},
			patched: "svc/app.yaml.patched.yaml",
			check: func(t *testing.T, content []byte) {
				var doc struct {
					Server struct {
						Port int    `yaml:"port"`
						TLS  bool   `yaml:"tls"`
						Mode string `yaml:"mode"`
					} `yaml:"server"`
				}
				if err := yaml.Unmarshal(content, &doc); err != nil {
					t.Fatalf("patched yaml: %v", err)
				}
				if doc.Server.Port != 80 || !doc.Server.TLS || doc.Server.Mode != "strict" {
					t.Errorf("patched document = %+v", doc.Server)
				}
			},
		},
		{
			name:    "json missing section",
			files:   map[string]string{"app.json": `{"name": "web"}`},
			spec:    policy.StructureSpec{JSONFilePattern: `\.json$`, JSONStructure: serverSchema, Patch: true},
			patched: "app.json.patched.json",
			check: func(t *testing.T, content []byte) {
				var doc map[string]any
				if err := json.Unmarshal(content, &doc); err != nil {
					t.Fatalf("patched json: %v", err)
				}
				server, _ := doc["server"].(map[string]any)
				if doc["name"] != "web" || server["tls"] != true || server["mode"] != "strict" {
					t.Errorf("patched document = %v", doc)
				}
			},
		},
		{
			name:  "disabled",
			files: map[string]string{"app.yaml": "server:\n  port: 80\n  tls: false\n"},
			spec:  policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: serverSchema},
		},
		{
			name:  "compliant artifact untouched",
			files: map[string]string{"app.yaml": "server:\n  port: 80\n  tls: true\n  mode: strict\n"},
			spec:  policy.StructureSpec{YMLFilePattern: `\.yaml$`, YMLStructure: serverSchema, Patch: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.PatchDir = t.TempDir()
			rule := &policy.Rule{ID: 11, Type: policy.TypeAssureFiletype, Enforcement: true, Structure: tt.spec}

			res := evaluate(t, NewStructuredMatcher(opts), rule, newSource(t, tt.files))

			var patches []policy.Violation
			for _, v := range res.Violations {
				if v.Kind == policy.KindInformational {
					patches = append(patches, v)
				}
			}
			if tt.patched == "" {
				if len(patches) != 0 {
					t.Fatalf("patches = %+v, want none", patches)
				}
				entries, _ := os.ReadDir(opts.PatchDir)
				if len(entries) != 0 {
					t.Errorf("patch dir holds %d entries, want none", len(entries))
				}
				return
			}

			if len(patches) != 1 || patches[0].Location.Logical != "patch" {
				t.Fatalf("patches = %+v, want one", patches)
			}
			want := filepath.Join(opts.PatchDir, filepath.FromSlash(tt.patched))
			if patches[0].Content != want {
				t.Errorf("patched file = %q, want %q", patches[0].Content, want)
			}
			content, err := os.ReadFile(want)
			if err != nil {
				t.Fatalf("read patched file: %v", err)
			}
			tt.check(t, content)

			if got := len(res.Violations) - len(patches); got == 0 {
				t.Error("patching must not hide the schema violations")
			}
		})
	}
}

func TestEncodeDocument_INI(t *testing.T) {
	out, err := encodeDocument(policy.FormatINI, map[string]any{
		"mode":   "prod",
		"server": map[string]any{"port": int64(8080), "host": "web"},
	})
	if err != nil {
		t.Fatalf("encodeDocument() error = %v", err)
	}
	f, err := ini.Load(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := f.Section("").Key("mode").String(); got != "prod" {
		t.Errorf("mode = %q", got)
	}
	if got := f.Section("server").Key("port").String(); got != "8080" {
		t.Errorf("server.port = %q", got)
	}
}

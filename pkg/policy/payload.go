package policy

import "strings"

// Format is a structured data format understood by assure-filetype rules.
type Format string

// Structured formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatINI  Format = "ini"
)

// StructureSpec holds the file-pattern and schema pairs of an
// assure-filetype rule. Exactly one pair is expected to be populated.
type StructureSpec struct {
	YMLFilePattern  string `yaml:"yml_filepattern"`
	YMLStructure    string `yaml:"yml_structure"`
	JSONFilePattern string `yaml:"json_filepattern"`
	JSONStructure   string `yaml:"json_structure"`
	TOMLFilePattern string `yaml:"toml_filepattern"`
	TOMLStructure   string `yaml:"toml_structure"`
	INIFilePattern  string `yaml:"ini_filepattern"`
	INIStructure    string `yaml:"ini_structure"`
	Strict          bool   `yaml:"strict"` // extra keys are violations
	Patch           bool   `yaml:"patch"`  // write a copy fixed to the schema's concrete values
}

// Binding is one populated format payload.
type Binding struct {
	Format      Format
	FilePattern string
	Schema      string
}

// Bindings returns every format with a file-pattern or schema set.
func (s StructureSpec) Bindings() []Binding {
	all := []Binding{
		{FormatYAML, s.YMLFilePattern, s.YMLStructure},
		{FormatJSON, s.JSONFilePattern, s.JSONStructure},
		{FormatTOML, s.TOMLFilePattern, s.TOMLStructure},
		{FormatINI, s.INIFilePattern, s.INIStructure},
	}
	var out []Binding
	for _, b := range all {
		if strings.TrimSpace(b.FilePattern) != "" || strings.TrimSpace(b.Schema) != "" {
			out = append(out, b)
		}
	}
	return out
}

// Binding returns the single populated format payload.
func (s StructureSpec) Binding() (Binding, bool) {
	b := s.Bindings()
	if len(b) != 1 {
		return Binding{}, false
	}
	return b[0], true
}

// APISpec describes the request issued by an assure-api rule.
type APISpec struct {
	Endpoint string   `yaml:"api_endpoint"`
	Method   string   `yaml:"api_request"`
	Body     string   `yaml:"api_body"`
	Auth     AuthMode `yaml:"api_auth"`
	BasicEnv string   `yaml:"api_auth_basic"` // suffix of INTERCEPT_<name>, value user:pass
	TokenEnv string   `yaml:"api_auth_token"` // suffix of INTERCEPT_<name>
	Insecure bool     `yaml:"api_insecure"`
	Trace    bool     `yaml:"api_trace"`
	Assert   string   `yaml:"api_assert"` // CEL expression over the response
}

// Templated reports whether the request references per-artifact values and
// therefore has to be issued once per matching artifact.
func (a APISpec) Templated() bool {
	for _, s := range []string{a.Endpoint, a.Body} {
		if strings.Contains(s, "{{path}}") || strings.Contains(s, "{{content}}") {
			return true
		}
	}
	return false
}

// RegoSpec describes the embedded policy evaluated by an assure-rego rule.
type RegoSpec struct {
	FilePattern string `yaml:"rego_filepattern"`
	PolicyFile  string `yaml:"rego_policy_file"`
	PolicyData  string `yaml:"rego_policy_data"`
	Query       string `yaml:"rego_policy_query"`
}

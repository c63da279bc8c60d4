package matcher

import (
	"encoding/json"
	"fmt"

	"github.com/go-ini/ini"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/xfhg/intercept/pkg/policy"
)

// toJSON decodes content in the given format and re-encodes it as JSON, the
// common form handed to CUE.
func toJSON(format policy.Format, content []byte) ([]byte, error) {
	switch format {
	case policy.FormatJSON:
		if !json.Valid(content) {
			var v any
			// Unmarshal again only to surface a positioned error.
			if err := json.Unmarshal(content, &v); err != nil {
				return nil, err
			}
		}
		return content, nil
	case policy.FormatYAML:
		var v any
		if err := yaml.Unmarshal(content, &v); err != nil {
			return nil, err
		}
		return json.Marshal(stringKeys(v))
	case policy.FormatTOML:
		var v map[string]any
		if err := toml.Unmarshal(content, &v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	case policy.FormatINI:
		f, err := ini.Load(content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(iniToMap(f))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// stringKeys converts map[any]any values produced for non-string YAML keys.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}

// iniToMap places keys of the default section at the top level and every
// other section under its own name. All values stay strings.
func iniToMap(f *ini.File) map[string]any {
	out := make(map[string]any)
	for _, section := range f.Sections() {
		keys := section.KeysHash()
		if section.Name() == ini.DefaultSection {
			for k, v := range keys {
				out[k] = v
			}
			continue
		}
		m := make(map[string]any, len(keys))
		for k, v := range keys {
			m[k] = v
		}
		out[section.Name()] = m
	}
	return out
}

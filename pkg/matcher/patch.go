package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-ini/ini"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/xfhg/intercept/pkg/policy"
)

// patchDocument sets every concrete scalar the schema declares, including
// defaults of disjunctions, wherever data lacks it or holds another value.
// It returns the patched document and whether anything changed. Documents
// that are not objects are left alone.
func patchDocument(schema string, data []byte) (map[string]any, bool, error) {
	sv := cuecontext.New().CompileString(schema)
	if err := sv.Err(); err != nil {
		return nil, false, fmt.Errorf("compile schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, false, nil
	}
	return doc, applySchema(sv, doc), nil
}

func applySchema(schema cue.Value, doc map[string]any) bool {
	iter, err := schema.Fields()
	if err != nil {
		return false
	}
	changed := false
	for iter.Next() {
		if !iter.Selector().IsString() {
			continue
		}
		label := iter.Selector().Unquoted()
		v := iter.Value()

		if v.IncompleteKind() == cue.StructKind {
			nested, ok := doc[label].(map[string]any)
			if !ok {
				nested = map[string]any{}
			}
			if applySchema(v, nested) {
				doc[label] = nested
				changed = true
			}
			continue
		}

		want, ok := concreteScalar(v)
		if !ok {
			continue
		}
		if got, exists := doc[label]; !exists || !sameScalar(want, got) {
			doc[label] = want
			changed = true
		}
	}
	return changed
}

func concreteScalar(v cue.Value) (any, bool) {
	v, _ = v.Default()
	if !v.IsConcrete() {
		return nil, false
	}
	var (
		out any
		err error
	)
	switch v.Kind() {
	case cue.StringKind:
		out, err = v.String()
	case cue.IntKind:
		out, err = v.Int64()
	case cue.FloatKind:
		out, err = v.Float64()
	case cue.BoolKind:
		out, err = v.Bool()
	default:
		return nil, false
	}
	return out, err == nil
}

// sameScalar compares a schema value with one decoded from JSON, where every
// number is a float64.
func sameScalar(want, got any) bool {
	switch w := want.(type) {
	case string:
		g, ok := got.(string)
		return ok && g == w
	case int64:
		g, ok := got.(float64)
		return ok && g == float64(w)
	case float64:
		g, ok := got.(float64)
		return ok && g == w
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	}
	return false
}

// encodeDocument renders doc back into format.
func encodeDocument(format policy.Format, doc map[string]any) ([]byte, error) {
	switch format {
	case policy.FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case policy.FormatYAML:
		return yaml.Marshal(doc)
	case policy.FormatTOML:
		return toml.Marshal(doc)
	case policy.FormatINI:
		f := ini.Empty()
		for _, k := range slices.Sorted(maps.Keys(doc)) {
			section, ok := doc[k].(map[string]any)
			if !ok {
				f.Section(ini.DefaultSection).Key(k).SetValue(fmt.Sprint(doc[k]))
				continue
			}
			for _, sk := range slices.Sorted(maps.Keys(section)) {
				f.Section(k).Key(sk).SetValue(fmt.Sprint(section[sk]))
			}
		}
		var buf bytes.Buffer
		if _, err := f.WriteTo(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// writePatch stores content under dir, mirroring the artifact's relative
// path, and returns the written file.
func writePatch(dir, rel string, format policy.Format, content []byte) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(rel)) + ".patched." + string(format)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

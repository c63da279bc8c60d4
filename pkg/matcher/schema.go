package matcher

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// IssueKind classifies a schema finding.
type IssueKind string

const (
	IssueMissing  IssueKind = "missing"
	IssueMismatch IssueKind = "mismatch"
	IssueExtra    IssueKind = "extra"
)

// SchemaIssue is one schema finding at a logical key path.
type SchemaIssue struct {
	Kind    IssueKind
	Path    string
	Message string
}

// rootKey names the document itself in key paths.
const rootKey = "$"

// compileSchema checks that schema is valid CUE.
func compileSchema(schema string) error {
	v := cuecontext.New().CompileString(schema)
	return v.Err()
}

// validateSchema unifies data (JSON) with schema (CUE) and reports missing
// keys, type mismatches and, when strict, keys the schema does not declare.
// A cue.Context is not safe for concurrent use, so each call builds its own.
func validateSchema(schema string, data []byte, strict bool) ([]SchemaIssue, error) {
	cctx := cuecontext.New()

	schemaValue := cctx.CompileString(schema)
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	dataValue := cctx.CompileBytes(data)
	if err := dataValue.Err(); err != nil {
		return nil, fmt.Errorf("compile data: %w", err)
	}

	var issues []SchemaIssue
	seen := make(map[string]bool)
	add := func(kind IssueKind, path, msg string) {
		if path == "" {
			path = rootKey
		}
		if seen[path] {
			return
		}
		seen[path] = true
		issues = append(issues, SchemaIssue{Kind: kind, Path: path, Message: msg})
	}

	findMissing(schemaValue, dataValue, "", add)

	unified := schemaValue.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		for _, e := range cueerrors.Errors(err) {
			path := strings.Join(e.Path(), ".")
			format, args := e.Msg()
			add(IssueMismatch, path, fmt.Sprintf(format, args...))
		}
	}

	if strict {
		findExtra(schemaValue, dataValue, "", add)
	}
	return issues, nil
}

func findMissing(schema, data cue.Value, prefix string, add func(IssueKind, string, string)) {
	iter, err := schema.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		if !iter.Selector().IsString() {
			continue
		}
		label := iter.Selector().Unquoted()
		path := joinKey(prefix, label)
		field := data.LookupPath(cue.MakePath(iter.Selector()))
		if !field.Exists() {
			add(IssueMissing, path, "missing required key")
			continue
		}
		if iter.Value().IncompleteKind() == cue.StructKind && field.Kind() == cue.StructKind {
			findMissing(iter.Value(), field, path, add)
		}
	}
}

func findExtra(schema, data cue.Value, prefix string, add func(IssueKind, string, string)) {
	iter, err := data.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		if !iter.Selector().IsString() {
			continue
		}
		label := iter.Selector().Unquoted()
		path := joinKey(prefix, label)
		field := schema.LookupPath(cue.MakePath(iter.Selector()))
		if !field.Exists() {
			add(IssueExtra, path, "key not declared in schema")
			continue
		}
		if iter.Value().Kind() == cue.StructKind && field.IncompleteKind() == cue.StructKind {
			findExtra(field, iter.Value(), path, add)
		}
	}
}

func joinKey(prefix, label string) string {
	if prefix == "" {
		return label
	}
	return prefix + "." + label
}

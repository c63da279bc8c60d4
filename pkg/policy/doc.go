// Package policy defines the typed model of an intercept policy document.
//
// A Document owns an ordered list of Rules plus the banner and exit-message
// templates used when reporting. Every Rule carries a Type discriminant that
// selects which matcher evaluates it; the type-specific payloads
// (StructureSpec, APISpec, RegoSpec) are only read by the matcher for that
// Type and are otherwise ignored.
//
// The package is pure data. Loading and validation live in the loader
// subpackage, and retrieval of policy bytes from files, URLs or git
// repositories lives in the source subpackage.
//
// # Rule Types
//
//	scan             forbidden content, every regex match is a violation
//	assure-regex     required content, an artifact with no match is a violation
//	assure-filetype  structured data (yaml, json, toml, ini) checked against a CUE schema
//	assure-api       HTTP endpoint checked for status, body patterns and CEL assertions
//	assure-rego      OPA Rego query evaluated against each artifact
//	collect          any of the above, findings are informational only
//	runtime          any of the above, evaluated by observe mode on every tick
//
// Violations produced during matching are also declared here so that the
// matcher, engine, report and observe packages share one vocabulary.
package policy

// Package matcher implements the rule evaluation backends.
//
// Every rule type that inspects target data is served by a Matcher:
//
//	scan             ScanMatcher        a pattern match is a violation
//	assure-regex     AssureMatcher      an artifact without a match is a violation
//	assure-filetype  StructuredMatcher  YAML/JSON/TOML/INI checked against a CUE schema
//	assure-api       APIMatcher         HTTP response checked with patterns, CUE and CEL
//	assure-rego      RegoMatcher        OPA Rego evaluated per artifact
//
// collect and runtime rules are routed by their subtype, so the Registry is
// keyed by policy.Rule.EffectiveType. Matchers produce violations of kind
// policy or evaluation-error, apart from the informational record of a
// schema patch. The engine reclassifies collect findings as informational.
//
// A non-nil error from Evaluate means the rule as a whole could not be
// evaluated (for example a Rego package mismatch). Failures scoped to one
// artifact are reported as evaluation-error violations instead, so one bad
// file never hides the others.
package matcher

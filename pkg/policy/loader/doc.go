// Package loader turns policy YAML into a validated policy.Document.
//
// Field names are case-insensitive: every mapping key is lower-cased before
// decoding. Validation never stops at the first problem; every violated
// invariant (duplicate ID, missing field for the rule type, invalid regex,
// unknown type) is reported in one *ValidationError and the whole document is
// rejected.
package loader

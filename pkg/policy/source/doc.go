// Package source retrieves policy documents from local files, HTTPS URLs
// (optionally pinned by sha256 checksum) and git repositories.
//
// Every source implements Source; FromConfig selects one from the policy
// section of the intercept configuration and Load fetches and validates the
// document in one step.
package source

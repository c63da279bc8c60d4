package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/policy/loader"
)

// Source yields the raw bytes of a policy document.
type Source interface {
	// Fetch returns the policy document contents.
	Fetch(ctx context.Context) ([]byte, error)

	// Name identifies the source in logs and error messages.
	Name() string
}

// ChecksumError indicates fetched content did not match the pinned checksum.
type ChecksumError struct {
	Source   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("policy %s checksum mismatch: expected %s, got %s", e.Source, e.Expected, e.Actual)
}

// FromConfig builds the Source described by cfg.
func FromConfig(cfg *config.PolicyConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default().With("component", "policy.source")
	}
	switch strings.ToLower(cfg.Source) {
	case "", config.PolicySourceFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file policy source requires a path")
		}
		return NewFileSource(cfg.Path), nil
	case config.PolicySourceHTTP:
		return NewHTTPSource(cfg.URL, cfg.Checksum, cfg.Timeout, logger)
	case config.PolicySourceGit:
		return NewGitSource(&cfg.Git, logger)
	default:
		return nil, fmt.Errorf("unknown policy source %q", cfg.Source)
	}
}

// Load fetches the document from src and validates it with l.
func Load(ctx context.Context, src Source, l *loader.Loader) (*policy.Document, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, &loader.LoadError{Path: src.Name(), Message: "fetch failed", Cause: err}
	}
	return l.Parse(data, src.Name())
}

// verifyChecksum compares the sha256 of data with the hex encoded expected
// digest. An empty expectation always passes.
func verifyChecksum(name string, data []byte, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(expected, "sha256:")))
	if expected == "" {
		return nil
	}
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != expected {
		return &ChecksumError{Source: name, Expected: expected, Actual: actual}
	}
	return nil
}

package matcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

func testOptions() Options {
	return Options{
		ArtifactConcurrency: 4,
		API: config.APIConfig{
			Timeout:      2 * time.Second,
			MaxBodyBytes: 1024,
		},
		Now: fixedNow,
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func newSource(t *testing.T, files map[string]string) *walker.Walker {
	t.Helper()
	w, err := walker.New(config.TargetConfig{Root: writeTree(t, files), MaxFileSize: 1 << 20}, nil)
	if err != nil {
		t.Fatalf("walker.New() error = %v", err)
	}
	return w
}

func evaluate(t *testing.T, m Matcher, rule *policy.Rule, src Source) Result {
	t.Helper()
	if err := rule.CompilePatterns(); err != nil {
		t.Fatalf("CompilePatterns() error = %v", err)
	}
	res, err := m.Evaluate(context.Background(), rule, src)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return res
}

func paths(vs []policy.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Location.Path)
	}
	return out
}

func logicals(vs []policy.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Location.Logical)
	}
	return out
}

package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/matcher"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/policy/loader"
	"github.com/xfhg/intercept/pkg/report"
	"github.com/xfhg/intercept/pkg/walker"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

const basePolicy = `
Banner: intercept
ExitCritical: "Critical irregularities found"
ExitWarning: "Irregularities found"
ExitClean: "Clean report"
Rules:
`

func parsePolicy(t *testing.T, rules string) *policy.Document {
	t.Helper()
	doc, err := loader.New(0, nil).Parse([]byte(basePolicy+rules), "policy.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newSource(t *testing.T, files map[string]string) *walker.Walker {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	return sourceAt(t, root)
}

func sourceAt(t *testing.T, root string) *walker.Walker {
	t.Helper()
	w, err := walker.New(config.TargetConfig{Root: root, MaxFileSize: 1 << 20}, nil)
	if err != nil {
		t.Fatalf("walker.New() error = %v", err)
	}
	return w
}

func matcherOptions() matcher.Options {
	return matcher.Options{
		ArtifactConcurrency: 4,
		API: config.APIConfig{
			Timeout:      time.Second,
			MaxBodyBytes: 1024,
		},
		Now: fixedNow,
	}
}

func newPipeline(opts Options) *Pipeline {
	if opts.Engine.Workers == 0 {
		opts.Engine.Workers = 4
	}
	if opts.Engine.RuleTimeout == 0 {
		opts.Engine.RuleTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	return NewPipeline(matcher.NewRegistry(matcherOptions()), opts)
}

func render(t *testing.T, r *report.Report) string {
	t.Helper()
	var buf bytes.Buffer
	if err := (&report.JSONRenderer{Indent: true}).Render(&buf, r.StripVolatile()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func verdict(t *testing.T, r *report.Report, id int) report.Verdict {
	t.Helper()
	v, ok := r.Verdict(id)
	if !ok {
		t.Fatalf("no verdict for rule %d", id)
	}
	return v
}

// stubMatcher returns a fixed result, optionally blocking until released.
type stubMatcher struct {
	result  matcher.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (m *stubMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src matcher.Source) (matcher.Result, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return m.result, m.err
}

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/xfhg/intercept/pkg/config"
)

const testPolicy = `
Banner: intercept
ExitCritical: "Critical irregularities found"
ExitWarning: "Irregularities found"
ExitClean: "Clean report"
Rules:
  - id: 1
    name: credentials in URL
    type: scan
    fatal: true
    enforcement: true
    environment: all
    confidence: high
    patterns:
      - '^(.*)://([^:]*):([^@]*)@(.*)$'
  - id: 2
    name: todo markers
    type: scan
    enforcement: true
    tags: [hygiene]
    patterns: ['TODO']
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// fixture writes a policy and a target tree and returns a config for them.
func fixture(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "target")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range files {
		writeFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}

	cfg := config.Default()
	cfg.Policy.Path = writeFile(t, filepath.Join(dir, "policy.yaml"), testPolicy)
	cfg.Target.Root = root
	cfg.Engine.Workers = 2
	cfg.Telemetry.Logging.Level = "error"
	cfg.Report.NoColor = true
	return cfg
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	return cmd, out
}

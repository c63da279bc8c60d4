package main

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origGitCommit, origBuildDate := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = origVersion, origGitCommit, origBuildDate }()

	Version = "1.2.3-test"
	GitCommit = "abc123"
	BuildDate = "2026-01-15"

	cmd, out := newTestCommand()
	versionCmd.Run(cmd, nil)

	for _, want := range []string{
		"Intercept 1.2.3-test",
		"Git Commit: abc123",
		"Build Date: 2026-01-15",
		"Go Version: " + runtime.Version(),
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH,
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"audit": false, "observe": false, "validate": false, "version": false, "completion": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestAuditFlags(t *testing.T) {
	for _, name := range []string{"policy", "env", "format", "output", "no-exceptions", "tags-any", "tags-all", "no-color", "redact"} {
		if auditCmd.Flags().Lookup(name) == nil {
			t.Errorf("audit flag --%s not defined", name)
		}
	}
	if f := auditCmd.Flags().ShorthandLookup("x"); f == nil || f.Name != "no-exceptions" {
		t.Error("-x should be shorthand for --no-exceptions")
	}
}

package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  NewConfigError("report.format", "unsupported format"),
			want: "config error in report.format: unsupported format",
		},
		{
			name: "without field",
			err:  NewConfigError("", "failed to load config"),
			want: "config error: failed to load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("audit", underlyingErr)

	expected := "command audit failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestExit(t *testing.T) {
	if err := Exit(ExitOK, nil); err != nil {
		t.Errorf("Exit(0, nil) = %v, want nil", err)
	}

	err := Exit(2, nil)
	if err == nil {
		t.Fatal("Exit(2, nil) = nil")
	}
	if err.Error() != "exit status 2" {
		t.Errorf("Error() = %q", err.Error())
	}

	cause := errors.New("policy rejected")
	err = Exit(ExitOK, cause)
	if !errors.Is(err, cause) {
		t.Error("ExitError should unwrap to its cause")
	}
}

func TestExitCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "exit error", err: Exit(130, nil), want: 130},
		{name: "wrapped exit error", err: fmt.Errorf("run: %w", Exit(1, nil)), want: 1},
		{name: "config error", err: NewConfigError("x", "y"), want: ExitFailure},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeOf(tt.err); got != tt.want {
				t.Errorf("ExitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{name: "string", data: "test message", want: "test message\n"},
		{name: "lines", data: []string{"a", "b"}, want: "a\nb\n"},
		{name: "number", data: 42, want: "42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := (&TextFormatter{}).FormatTo(buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	data := map[string]any{"valid": false, "issues": []string{"rule 1: missing type"}}

	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, data); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["valid"] != false {
		t.Errorf("valid = %v, want false", decoded["valid"])
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Error("indented output expected")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		want    string
		wantErr bool
	}{
		{format: "", want: "*cli.TextFormatter"},
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: "JSON", want: "*cli.JSONFormatter"},
		{format: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFormatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := typeName(f); got != tt.want {
				t.Errorf("NewFormatter() = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextFormatter:
		return "*cli.TextFormatter"
	case *JSONFormatter:
		return "*cli.JSONFormatter"
	default:
		return "unknown"
	}
}

func TestOpenOutput(t *testing.T) {
	stdout := &bytes.Buffer{}

	w, err := OpenOutput("", stdout)
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	w.Write([]byte("to stdout"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if stdout.String() != "to stdout" {
		t.Errorf("stdout = %q", stdout.String())
	}

	path := filepath.Join(t.TempDir(), "reports", "out.json")
	w, err = OpenOutput(path, stdout)
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	w.Write([]byte("{}"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("file content = %q", data)
	}
}

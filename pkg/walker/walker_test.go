package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/xfhg/intercept/pkg/config"
)

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

func collect(t *testing.T, w *Walker, filter Filter) ([]string, []error) {
	t.Helper()
	var paths []string
	var errs []error
	for a, err := range w.Walk(context.Background(), filter) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, a.Path)
	}
	return paths, errs
}

func newWalker(t *testing.T, cfg config.TargetConfig) *Walker {
	t.Helper()
	w, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func TestWalk_Filters(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":               "package main",
		"config/app.yaml":       "a: 1",
		"config/app.json":       "{}",
		"vendor/lib/lib.go":     "package lib",
		"docs/readme.md":        "docs",
		".git/config":           "[core]",
		"config/nested/db.yaml": "b: 2",
	})

	tests := []struct {
		name    string
		include []string
		exclude []string
		hidden  bool
		pattern string
		want    []string
	}{
		{
			name: "everything",
			want: []string{".git/config", "config/app.json", "config/app.yaml", "config/nested/db.yaml", "docs/readme.md", "main.go", "vendor/lib/lib.go"},
		},
		{
			name:    "exclude prunes directories",
			exclude: []string{"vendor", ".git"},
			want:    []string{"config/app.json", "config/app.yaml", "config/nested/db.yaml", "docs/readme.md", "main.go"},
		},
		{
			name:    "include glob",
			include: []string{"**.yaml"},
			want:    []string{"config/app.yaml", "config/nested/db.yaml"},
		},
		{
			name:    "exclude wins over include",
			include: []string{"**.yaml"},
			exclude: []string{"config/nested"},
			want:    []string{"config/app.yaml"},
		},
		{
			name:    "rule pattern",
			pattern: `\.go$`,
			want:    []string{"main.go", "vendor/lib/lib.go"},
		},
		{
			name:   "skip hidden",
			hidden: true,
			want:   []string{"config/app.json", "config/app.yaml", "config/nested/db.yaml", "docs/readme.md", "main.go", "vendor/lib/lib.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWalker(t, config.TargetConfig{Root: root, Include: tt.include, Exclude: tt.exclude, SkipHidden: tt.hidden})
			filter, err := NewFilter(tt.pattern, false)
			if err != nil {
				t.Fatalf("NewFilter() error = %v", err)
			}
			got, errs := collect(t, w, filter)
			if len(errs) != 0 {
				t.Fatalf("unexpected walk errors: %v", errs)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("paths = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWalk_Restartable(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a", "b/c.txt": "c"})
	w := newWalker(t, config.TargetConfig{Root: root})

	seq := w.Walk(context.Background(), Filter{})
	var first, second []string
	for a, err := range seq {
		if err == nil {
			first = append(first, a.Path)
		}
	}
	for a, err := range seq {
		if err == nil {
			second = append(second, a.Path)
		}
	}
	if len(first) != 2 || !slices.Equal(first, second) {
		t.Errorf("walks differ: %v vs %v", first, second)
	}
}

func TestWalk_EarlyBreak(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	w := newWalker(t, config.TargetConfig{Root: root})

	count := 0
	for range w.Walk(context.Background(), Filter{}) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWalk_TextOnly(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.txt": "hello",
		"large.txt": "0123456789abcdef0123456789",
		"image.bin": "PNG\x00\x01\x02",
	})
	w := newWalker(t, config.TargetConfig{Root: root, MaxFileSize: 16})

	textOnly, _ := NewFilter("", true)
	got, errs := collect(t, w, textOnly)
	if !slices.Equal(got, []string{"small.txt"}) {
		t.Errorf("paths = %v, want [small.txt]", got)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d skips, want 2: %v", len(errs), errs)
	}
	for _, err := range errs {
		var we *WalkError
		if !errors.As(err, &we) || !we.Filtered() {
			t.Errorf("expected filtered WalkError, got %v", err)
		}
		if IsAccessError(err) {
			t.Errorf("IsAccessError(%v) = true", err)
		}
	}
	if !errors.Is(errs[0], ErrBinary) {
		t.Errorf("first skip = %v, want ErrBinary", errs[0])
	}
	if !errors.Is(errs[1], ErrTooLarge) {
		t.Errorf("second skip = %v, want ErrTooLarge", errs[1])
	}

	all, errs := collect(t, w, Filter{})
	if len(all) != 3 || len(errs) != 0 {
		t.Errorf("structured walk = %v (errs %v), want all 3 files", all, errs)
	}
}

func TestWalk_SymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	root := writeTree(t, map[string]string{"dir/file.txt": "x"})
	if err := os.Symlink(root, filepath.Join(root, "dir", "loop")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "dir", "file.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	w := newWalker(t, config.TargetConfig{Root: root, FollowSymlinks: true})
	got, errs := collect(t, w, Filter{})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !slices.Equal(got, []string{"dir/file.txt", "link.txt"}) {
		t.Errorf("paths = %v", got)
	}

	w = newWalker(t, config.TargetConfig{Root: root, FollowSymlinks: false})
	got, _ = collect(t, w, Filter{})
	if !slices.Equal(got, []string{"dir/file.txt"}) {
		t.Errorf("paths without symlinks = %v", got)
	}
}

func TestWalk_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := writeTree(t, map[string]string{"open/a.txt": "a", "locked/b.txt": "b"})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w := newWalker(t, config.TargetConfig{Root: root})
	got, errs := collect(t, w, Filter{})
	if !slices.Equal(got, []string{"open/a.txt"}) {
		t.Errorf("paths = %v", got)
	}
	if len(errs) != 1 || !IsAccessError(errs[0]) {
		t.Fatalf("errors = %v, want one access error", errs)
	}
	var we *WalkError
	if errors.As(errs[0], &we) && we.Path != "locked" {
		t.Errorf("error path = %q, want locked", we.Path)
	}
}

func TestWalk_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})
	w := newWalker(t, config.TargetConfig{Root: root})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var last error
	for _, err := range w.Walk(ctx, Filter{}) {
		last = err
	}
	if !errors.Is(last, context.Canceled) {
		t.Errorf("last error = %v, want context.Canceled", last)
	}
}

func TestNew_Errors(t *testing.T) {
	root := writeTree(t, map[string]string{"file.txt": "x"})

	if _, err := New(config.TargetConfig{Root: filepath.Join(root, "missing")}, nil); err == nil {
		t.Error("expected error for missing root")
	}
	if _, err := New(config.TargetConfig{Root: filepath.Join(root, "file.txt")}, nil); err == nil {
		t.Error("expected error for file root")
	}
	if _, err := New(config.TargetConfig{Root: root, Exclude: []string{"[unclosed"}}, nil); err == nil {
		t.Error("expected error for invalid glob")
	}
	if _, err := NewFilter("(", false); err == nil {
		t.Error("expected error for invalid file pattern")
	}
}

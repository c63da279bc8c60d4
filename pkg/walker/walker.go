package walker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/xfhg/intercept/pkg/config"
)

// sniffLen is how many leading bytes are inspected for binary detection.
const sniffLen = 8000

// Walker enumerates artifacts under a root directory.
type Walker struct {
	root           string
	include        []glob.Glob
	exclude        []glob.Glob
	maxFileSize    int64
	followSymlinks bool
	skipHidden     bool
	logger         *slog.Logger
}

// New creates a walker from the target configuration. The root must exist.
func New(cfg config.TargetConfig, logger *slog.Logger) (*Walker, error) {
	if logger == nil {
		logger = slog.Default().With("component", "walker")
	}

	root := cfg.Root
	if root == "" {
		root = config.DefaultTargetRoot
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("target root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target root %s is not a directory", root)
	}

	include, err := compileGlobs(cfg.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs(cfg.Exclude)
	if err != nil {
		return nil, err
	}

	return &Walker{
		root:           filepath.Clean(root),
		include:        include,
		exclude:        exclude,
		maxFileSize:    cfg.MaxFileSize,
		followSymlinks: cfg.FollowSymlinks,
		skipHidden:     cfg.SkipHidden,
		logger:         logger,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Root returns the cleaned root directory.
func (w *Walker) Root() string {
	return w.root
}

// Walk returns the artifacts under the root that pass filter, in lexical
// order. Walk errors are yielded with a zero Artifact. Iteration stops early
// when ctx is cancelled, yielding ctx.Err() last.
func (w *Walker) Walk(ctx context.Context, filter Filter) iter.Seq2[Artifact, error] {
	return func(yield func(Artifact, error) bool) {
		visited := make(map[fileID]struct{})
		if info, err := os.Stat(w.root); err == nil {
			if id, ok := idOf(info); ok {
				visited[id] = struct{}{}
			}
		}
		w.walkDir(ctx, w.root, "", filter, visited, yield)
	}
}

// walkDir returns false once the consumer stopped or ctx was cancelled.
func (w *Walker) walkDir(ctx context.Context, dir, rel string, filter Filter, visited map[fileID]struct{}, yield func(Artifact, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield(Artifact{}, err)
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(Artifact{}, &WalkError{Path: displayPath(rel), Op: "readdir", Err: err})
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := path.Join(rel, name)
		childAbs := filepath.Join(dir, name)

		if w.skipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if w.excluded(childRel) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !yield(Artifact{}, &WalkError{Path: childRel, Op: "stat", Err: err}) {
				return false
			}
			continue
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			if !w.followSymlinks {
				continue
			}
			info, err = os.Stat(childAbs)
			if err != nil {
				if !yield(Artifact{}, &WalkError{Path: childRel, Op: "stat", Err: err}) {
					return false
				}
				continue
			}
		}

		if info.IsDir() {
			id, ok := idOf(info)
			if !ok && entry.Type()&fs.ModeSymlink != 0 {
				continue
			}
			if ok {
				if _, seen := visited[id]; seen {
					w.logger.Debug("skipping directory cycle", "path", childRel)
					continue
				}
				visited[id] = struct{}{}
			}
			if !w.walkDir(ctx, childAbs, childRel, filter, visited, yield) {
				return false
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		if !w.included(childRel) || !filter.matches(childRel) {
			continue
		}

		artifact := Artifact{
			Path:    childRel,
			AbsPath: childAbs,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		if filter.TextOnly {
			if err := w.checkText(artifact); err != nil {
				if !yield(Artifact{}, err) {
					return false
				}
				continue
			}
		}

		if !yield(artifact, nil) {
			return false
		}
	}
	return true
}

func (w *Walker) excluded(rel string) bool {
	for _, g := range w.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (w *Walker) included(rel string) bool {
	if len(w.include) == 0 {
		return true
	}
	for _, g := range w.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (w *Walker) checkText(a Artifact) error {
	if w.maxFileSize > 0 && a.Size > w.maxFileSize {
		return &WalkError{Path: a.Path, Op: "filter", Err: ErrTooLarge}
	}

	f, err := a.Open()
	if err != nil {
		return &WalkError{Path: a.Path, Op: "open", Err: err}
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return &WalkError{Path: a.Path, Op: "open", Err: err}
	}
	if bytes.IndexByte(buf[:n], 0) >= 0 {
		return &WalkError{Path: a.Path, Op: "filter", Err: ErrBinary}
	}
	return nil
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

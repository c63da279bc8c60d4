package source

import (
	"context"
	"os"
)

// FileSource reads a policy from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.path)
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.path
}

// Path returns the file path for watchers.
func (s *FileSource) Path() string {
	return s.path
}

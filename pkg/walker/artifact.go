package walker

import (
	"os"
	"time"
)

// Artifact describes one file under the target root.
type Artifact struct {
	// Path is relative to the walk root and slash separated.
	Path string

	// AbsPath is the filesystem path used to read the file.
	AbsPath string

	Size    int64
	ModTime time.Time
}

// ReadAll returns the file contents.
func (a Artifact) ReadAll() ([]byte, error) {
	return os.ReadFile(a.AbsPath)
}

// Open opens the file for reading.
func (a Artifact) Open() (*os.File, error) {
	return os.Open(a.AbsPath)
}

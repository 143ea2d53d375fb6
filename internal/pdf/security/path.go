// Package security confines file access to a configured directory and
// decodes the permissions of encrypted documents.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root confines paths to one directory tree. Paths are compared both as
// written and with symlinks resolved, so a link inside the root that
// points outside it is rejected. A root that does not exist yet confines
// nothing.
type Root struct {
	dir string
}

// NewRoot creates a root at dir
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	return &Root{dir: dir}, nil
}

// Dir returns the root directory as configured
func (r *Root) Dir() string {
	return r.dir
}

// Check returns an error unless path lies inside the root
func (r *Root) Check(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	within, err := r.Contains(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// Contains reports whether path is the root or lies below it
func (r *Root) Contains(path string) (bool, error) {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return true, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(r.dir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	dirs := []string{filepath.Clean(absDir)}
	if real, err := filepath.EvalSymlinks(absDir); err == nil {
		dirs = append(dirs, real)
	}

	return under(filepath.Clean(absPath), dirs) && under(realPath(absPath), dirs), nil
}

// realPath resolves symlinks in path. For a path that does not exist, its
// deepest existing ancestor is resolved and the rest appended.
func realPath(path string) string {
	path = filepath.Clean(path)
	rest := ""
	for {
		if real, err := filepath.EvalSymlinks(path); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return filepath.Join(path, rest)
		}
		rest = filepath.Join(filepath.Base(path), rest)
		path = parent
	}
}

func under(path string, dirs []string) bool {
	for _, d := range dirs {
		if path == d || strings.HasPrefix(path, strings.TrimSuffix(d, string(filepath.Separator))+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

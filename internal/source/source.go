// Package source resolves the directory that is packaged into a deployment
// artifact.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
)

var (
	// ErrNotFound is returned when the source path does not exist.
	ErrNotFound = errors.NewPlain("source path does not exist")

	// ErrNotADirectory is returned when the source path exists but is not a
	// directory.
	ErrNotADirectory = errors.NewPlain("source path is not a directory")
)

// PathError reports a source path that failed validation. It matches
// ErrNotFound or ErrNotADirectory through errors.Is.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	switch e.Err {
	case ErrNotFound:
		return "source path '" + e.Path + "' does not exist"
	case ErrNotADirectory:
		return "source path '" + e.Path + "' is not a directory"
	}
	return "source path '" + e.Path + "': " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// Resolve returns the absolute, symlink-free directory to package. An empty
// path resolves to DefaultRoot. A leading "~" is expanded to the current
// user's home directory.
func Resolve(path string) (string, error) {
	if path == "" {
		return DefaultRoot()
	}

	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve absolute path for %q", path)
	}

	fi, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &PathError{Path: resolved, Err: ErrNotFound}
		}
		return "", errors.Wrapf(err, "cannot stat source path %q", resolved)
	}
	if !fi.IsDir() {
		return "", &PathError{Path: resolved, Err: ErrNotADirectory}
	}

	// The archive root and object key are named after the real directory, and
	// a symlinked root would otherwise not be descended into.
	real, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve symlinks for %q", resolved)
	}
	return real, nil
}

// DefaultRoot is the application root: the parent of the directory holding the
// running executable.
func DefaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(filepath.Dir(exe)), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to expand home directory")
	}
	return filepath.Join(home, path[1:]), nil
}

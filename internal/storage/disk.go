package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"emperror.dev/errors"
)

// LocalAuthenticator writes artifacts to a directory on the local filesystem.
// Buckets map to sub-directories of the base directory and keys to paths
// within them. No credentials are needed.
type LocalAuthenticator struct {
	baseDir string
}

// NewLocalAuthenticator creates a LocalAuthenticator rooted at baseDir.
func NewLocalAuthenticator(baseDir string) (*LocalAuthenticator, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: failed to resolve absolute path for %q", baseDir)
	}
	return &LocalAuthenticator{baseDir: abs}, nil
}

// Authenticate ignores creds and returns a client over the base directory,
// creating it if it does not already exist.
func (a *LocalAuthenticator) Authenticate(_ context.Context, _ Credentials) (Client, error) {
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "storage: failed to create local base directory %q", a.baseDir)
	}
	return &localClient{baseDir: a.baseDir}, nil
}

type localClient struct {
	baseDir string
}

func (c *localClient) Bucket(name string) Bucket {
	return &localBucket{baseDir: c.baseDir, dir: filepath.Join(c.baseDir, name)}
}

// URI is a file:// URL pointing at the written file.
func (c *localClient) URI(bucket, key string) string {
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(c.baseDir, bucket, filepath.FromSlash(key)))}
	return u.String()
}

func (c *localClient) Close() error { return nil }

type localBucket struct {
	baseDir string
	dir     string
}

func (b *localBucket) Object(key string) Object {
	return &localObject{
		baseDir: b.baseDir,
		dir:     b.dir,
		key:     key,
		path:    filepath.Join(b.dir, filepath.FromSlash(key)),
	}
}

type localObject struct {
	baseDir string
	dir     string
	key     string
	path    string
}

// Upload writes r to a temporary file beside the destination and renames it
// into place, so a partially written object is never visible.
func (o *localObject) Upload(_ context.Context, r io.Reader, _ string) (int64, error) {
	if !within(o.baseDir, o.dir) || !within(o.dir, o.path) {
		return 0, errors.WithStack(&InvalidPathError{Key: o.key})
	}

	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return 0, errors.Wrapf(err, "storage: failed to create directory for %q", o.key)
	}

	f, err := os.CreateTemp(filepath.Dir(o.path), ".upload-*")
	if err != nil {
		return 0, errors.Wrapf(err, "storage: failed to create file for %q", o.key)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, errors.Wrapf(err, "storage: failed to write file %q", o.path)
	}
	if err := f.Close(); err != nil {
		return n, errors.Wrapf(err, "storage: failed to close file %q", o.path)
	}
	if err := os.Rename(f.Name(), o.path); err != nil {
		return n, errors.Wrapf(err, "storage: failed to move file into place %q", o.path)
	}
	return n, nil
}

// ErrInvalidPath is matched by errors for buckets or keys that would resolve
// outside the local base directory.
var ErrInvalidPath = errors.NewPlain("object path escapes the base directory")

// InvalidPathError reports a bucket or key rejected by the local backend.
type InvalidPathError struct {
	Key string
}

func (e *InvalidPathError) Error() string {
	return "storage: object " + strconv.Quote(e.Key) + " resolves outside the base directory"
}

func (e *InvalidPathError) Is(target error) bool { return target == ErrInvalidPath }

// within reports whether child is strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

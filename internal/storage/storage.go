// Package storage provides a narrow abstraction over object stores for
// uploading deployment artifacts. Each backend exposes the same capability
// chain: authenticate, select a bucket, address an object and upload to it.
// The GCS implementation is the production backend; the interfaces allow
// alternative implementations for testing.
package storage

import (
	"context"
	"io"

	"emperror.dev/errors"
)

// ErrNoCredentials is matched by errors returned from Authenticate when no
// usable credentials could be found by any resolution path.
var ErrNoCredentials = errors.NewPlain("no usable credentials found")

// Credentials carries the caller's credential material. It is handed opaquely
// to the backend SDK and never persisted.
type Credentials struct {
	// File is the path to a service-account key (or shared credentials) file.
	// When empty the backend falls back to ambient default credentials.
	File string

	// Project is the cloud project the client is bound to, if any.
	Project string
}

// Authenticator produces an authenticated Client.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Client, error)
}

// Client is an authenticated connection to an object store.
type Client interface {
	Bucket(name string) Bucket

	// URI returns the canonical location of key within bucket.
	URI(bucket, key string) string

	Close() error
}

// Bucket is a named top-level container in the object store.
type Bucket interface {
	Object(key string) Object
}

// Object is a handle to a single object within a bucket.
type Object interface {
	// Upload writes the full content of r to the object and returns the
	// number of bytes written.
	Upload(ctx context.Context, r io.Reader, contentType string) (int64, error)
}

// AuthenticationError reports that no usable credentials were found. The
// message tells the caller how to remedy the situation; the SDK failure is
// available through Unwrap.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string { return e.Message }

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrNoCredentials }

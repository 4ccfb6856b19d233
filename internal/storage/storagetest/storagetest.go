// Package storagetest provides an in-memory object store for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tomasbasham/deploy-publisher/internal/storage"
)

// Object is an uploaded object as recorded by the fake store.
type Object struct {
	Data        []byte
	ContentType string
}

// Authenticator is a fake storage.Authenticator backed by memory.
type Authenticator struct {
	// AuthErr, when set, is returned from Authenticate.
	AuthErr error

	// UploadErr, when set, is returned from every Upload.
	UploadErr error

	mu      sync.Mutex
	calls   []storage.Credentials
	objects map[string]Object
	closed  int
}

var _ storage.Authenticator = (*Authenticator)(nil)

func (a *Authenticator) Authenticate(_ context.Context, creds storage.Credentials) (storage.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, creds)
	if a.AuthErr != nil {
		return nil, a.AuthErr
	}
	return &client{store: a}, nil
}

// Calls returns the credentials passed to each Authenticate call.
func (a *Authenticator) Calls() []storage.Credentials {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]storage.Credentials(nil), a.calls...)
}

// Objects returns the uploaded objects keyed by "bucket/key".
func (a *Authenticator) Objects() map[string]Object {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Object, len(a.objects))
	for k, v := range a.objects {
		out[k] = v
	}
	return out
}

// Closed reports how many clients have been closed.
func (a *Authenticator) Closed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type client struct {
	store *Authenticator
}

func (c *client) Bucket(name string) storage.Bucket {
	return &bucket{store: c.store, name: name}
}

func (c *client) URI(bucket, key string) string {
	return fmt.Sprintf("mem://%s/%s", bucket, key)
}

func (c *client) Close() error {
	c.store.mu.Lock()
	c.store.closed++
	c.store.mu.Unlock()
	return nil
}

type bucket struct {
	store *Authenticator
	name  string
}

func (b *bucket) Object(key string) storage.Object {
	return &object{store: b.store, path: b.name + "/" + key}
}

type object struct {
	store *Authenticator
	path  string
}

func (o *object) Upload(_ context.Context, r io.Reader, contentType string) (int64, error) {
	if o.store.UploadErr != nil {
		return 0, o.store.UploadErr
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return n, err
	}

	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if o.store.objects == nil {
		o.store.objects = make(map[string]Object)
	}
	o.store.objects[o.path] = Object{Data: buf.Bytes(), ContentType: contentType}
	return n, nil
}

package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"emperror.dev/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const gcsNoCredentialsMessage = "No Google Cloud credentials found. Provide GOOGLE_APPLICATION_CREDENTIALS " +
	"or configure application-default credentials."

// GCSAuthenticator creates Google Cloud Storage clients.
type GCSAuthenticator struct {
	opts []option.ClientOption
}

// NewGCSAuthenticator creates a GCSAuthenticator. opts are passed through to
// every client it creates.
func NewGCSAuthenticator(opts ...option.ClientOption) *GCSAuthenticator {
	return &GCSAuthenticator{opts: opts}
}

// Authenticate returns a GCS client. An explicit credentials file takes
// precedence; otherwise application-default credentials must be discoverable.
// creds.Project is not sent with requests: object uploads are addressed by
// bucket alone, and binding it as a quota project would bill it.
func (a *GCSAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Client, error) {
	if creds.File == "" {
		if _, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite); err != nil {
			return nil, &AuthenticationError{Message: gcsNoCredentialsMessage, Err: err}
		}
	}

	client, err := storage.NewClient(ctx, a.clientOptions(creds)...)
	if err != nil {
		return nil, errors.Wrap(err, "storage: failed to create GCS client")
	}
	return &gcsClient{client: client}, nil
}

func (a *GCSAuthenticator) clientOptions(creds Credentials) []option.ClientOption {
	opts := append([]option.ClientOption{}, a.opts...)
	if creds.File != "" {
		opts = append(opts, option.WithCredentialsFile(creds.File))
	}
	return opts
}

type gcsClient struct {
	client *storage.Client
}

func (c *gcsClient) Bucket(name string) Bucket {
	return &gcsBucket{handle: c.client.Bucket(name)}
}

func (c *gcsClient) URI(bucket, key string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, key)
}

func (c *gcsClient) Close() error {
	return c.client.Close()
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b *gcsBucket) Object(key string) Object {
	return &gcsObject{handle: b.handle.Object(key)}
}

type gcsObject struct {
	handle *storage.ObjectHandle
}

// Upload writes r to the object. The object only becomes visible once the
// writer is closed successfully.
func (o *gcsObject) Upload(ctx context.Context, r io.Reader, contentType string) (int64, error) {
	w := o.handle.NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return n, errors.Wrapf(err, "storage: upload write failed for %q", o.handle.ObjectName())
	}
	if err := w.Close(); err != nil {
		return n, errors.Wrapf(err, "storage: upload close failed for %q", o.handle.ObjectName())
	}
	return n, nil
}

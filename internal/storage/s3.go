package storage

import (
	"context"
	"fmt"
	"io"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3NoCredentialsMessage = "No AWS credentials found. Provide a shared credentials file " +
	"or configure the default credential chain."

// S3Authenticator creates Amazon S3 (or compatible) clients.
type S3Authenticator struct {
	optFns []func(*config.LoadOptions) error
}

// NewS3Authenticator creates an S3Authenticator. optFns are applied when
// loading the AWS configuration, allowing region or endpoint overrides.
func NewS3Authenticator(optFns ...func(*config.LoadOptions) error) *S3Authenticator {
	return &S3Authenticator{optFns: optFns}
}

// Authenticate loads the AWS configuration and verifies that credentials can
// be retrieved. creds.File names a shared credentials file; creds.Project,
// when set, selects the shared config profile.
func (a *S3Authenticator) Authenticate(ctx context.Context, creds Credentials) (Client, error) {
	optFns := append([]func(*config.LoadOptions) error{}, a.optFns...)
	if creds.File != "" {
		optFns = append(optFns, config.WithSharedCredentialsFiles([]string{creds.File}))
	}
	if creds.Project != "" {
		optFns = append(optFns, config.WithSharedConfigProfile(creds.Project))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errors.Wrap(err, "storage: failed to load AWS config")
	}
	if cfg.Credentials == nil {
		return nil, &AuthenticationError{Message: s3NoCredentialsMessage, Err: ErrNoCredentials}
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &AuthenticationError{Message: s3NoCredentialsMessage, Err: err}
	}

	client := s3.NewFromConfig(cfg)
	return &s3Client{uploader: manager.NewUploader(client)}, nil
}

type s3Client struct {
	uploader *manager.Uploader
}

func (c *s3Client) Bucket(name string) Bucket {
	return &s3Bucket{uploader: c.uploader, name: name}
}

func (c *s3Client) URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

func (c *s3Client) Close() error { return nil }

type s3Bucket struct {
	uploader *manager.Uploader
	name     string
}

func (b *s3Bucket) Object(key string) Object {
	return &s3Object{uploader: b.uploader, bucket: b.name, key: key}
}

type s3Object struct {
	uploader *manager.Uploader
	bucket   string
	key      string
}

func (o *s3Object) Upload(ctx context.Context, r io.Reader, contentType string) (int64, error) {
	cr := &countingReader{r: r}
	_, err := o.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(o.key),
		Body:        cr,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return cr.n, errors.Wrapf(err, "storage: upload failed for %q", o.key)
	}
	return cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

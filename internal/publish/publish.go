// Package publish packages a source directory and uploads it as a single
// deployment artifact. The pipeline is strictly sequential:
//
//	resolve source → archive → name object → authenticate → upload.
//
// Nothing is retained between calls and a failed step aborts the pipeline
// without retrying.
package publish

import (
	"context"
	"io"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tomasbasham/deploy-publisher/internal/archive"
	"github.com/tomasbasham/deploy-publisher/internal/naming"
	"github.com/tomasbasham/deploy-publisher/internal/source"
	"github.com/tomasbasham/deploy-publisher/internal/storage"
)

// ErrBucketRequired is returned before any I/O when no bucket is configured.
var ErrBucketRequired = errors.NewPlain("a target bucket must be provided")

// Config is the complete input to Publish. Callers resolve environment
// fallbacks before building it.
type Config struct {
	// Bucket is the destination bucket. Required.
	Bucket string

	// Source is the directory to package. Defaults to the application root
	// when empty.
	Source string

	// Prefix is an optional folder prefix for the object key.
	Prefix string

	// Credentials are passed opaquely to the storage backend.
	Credentials storage.Credentials

	// Now returns the current time used to stamp the object key. Defaults to
	// time.Now.
	Now func() time.Time

	// Logger receives progress logs. Logs are discarded when nil.
	Logger log.FieldLogger
}

// Result describes an uploaded artifact.
type Result struct {
	// URI is the canonical scheme://bucket/key location of the artifact.
	URI string

	Bucket string
	Key    string

	// Size is the number of compressed bytes uploaded.
	Size int64
}

// Publish archives cfg.Source and uploads it to cfg.Bucket using a client
// obtained from auth.
func Publish(ctx context.Context, cfg Config, auth storage.Authenticator) (*Result, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		discard := log.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	logger = logger.WithField("invocation", uuid.New().String())

	dir, err := source.Resolve(cfg.Source)
	if err != nil {
		return nil, err
	}

	logger.WithField("source", dir).Debug("archiving source directory")
	buf, stats, err := archive.Build(dir)
	if err != nil {
		return nil, err
	}
	for _, p := range stats.Skipped {
		logger.WithField("path", p).Debug("skipping unsupported file type")
	}
	logger.WithFields(log.Fields{
		"files":        stats.Files,
		"dirs":         stats.Dirs,
		"uncompressed": datasize.ByteSize(stats.Bytes).HumanReadable(),
		"compressed":   datasize.ByteSize(stats.Compressed).HumanReadable(),
	}).Info("archive built")

	key := naming.ObjectKey(cfg.Prefix, dir, cfg.Now())

	logger.WithFields(log.Fields{
		"explicit-credentials": cfg.Credentials.File != "",
		"project":              cfg.Credentials.Project,
	}).Debug("authenticating")
	client, err := auth.Authenticate(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	uri := client.URI(cfg.Bucket, key)
	logger.WithField("target", uri).Info("uploading deployment package")

	n, err := client.Bucket(cfg.Bucket).Object(key).Upload(ctx, buf, archive.ContentType)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"target": uri,
		"size":   datasize.ByteSize(n).HumanReadable(),
	}).Info("upload complete")

	return &Result{
		URI:    uri,
		Bucket: cfg.Bucket,
		Key:    key,
		Size:   n,
	}, nil
}

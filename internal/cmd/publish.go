package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/tomasbasham/deploy-publisher/internal/publish"
	"github.com/tomasbasham/deploy-publisher/internal/storage"
)

const (
	// Environment variables consulted when the corresponding flag is unset.
	credentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"
	projectEnv     = "GCP_PROJECT_ID"
)

const (
	ProviderGCS   = "gcs"
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// PublishOptions defines the options for the `publish` command.
type PublishOptions struct {
	// authenticator overrides the provider's authenticator.
	authenticator storage.Authenticator
	logger        *log.Logger

	Bucket          string
	Source          string
	Prefix          string
	Project         string
	CredentialsPath string
	Provider        string
	LocalRoot       string
	LogLevel        string

	iooption.IOStreams
}

// NewPublishOptions provides an initialised PublishOptions instance.
func NewPublishOptions(streams iooption.IOStreams) *PublishOptions {
	return &PublishOptions{
		Provider:  ProviderGCS,
		LogLevel:  log.WarnLevel.String(),
		IOStreams: streams,
	}
}

// AddFlags registers the command line flags for o on cmd.
func (o *PublishOptions) AddFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVar(&o.Source, "source", o.Source, "Path to the directory that should be archived (default: the application root)")
	flags.StringVar(&o.Prefix, "prefix", o.Prefix, "Optional folder prefix to apply to the uploaded object")
	flags.StringVar(&o.Project, "project", o.Project, "Override the GCP project ID if it differs from "+projectEnv)
	flags.StringVar(&o.CredentialsPath, "credentials", o.CredentialsPath, "Path to a service account JSON file (default: "+credentialsEnv+")")
	flags.StringVar(&o.Provider, "provider", o.Provider, "Object store to upload to. One of gcs, s3, local")
	flags.StringVar(&o.LocalRoot, "local-root", o.LocalRoot, "Base directory for the local provider")

	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level. One of trace, debug, info, warn, error")
}

func (o *PublishOptions) setupLogging() error {
	level, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return &usageError{err: fmt.Errorf("invalid log level: %w", err)}
	}
	o.logger = log.New()
	o.logger.SetOutput(o.ErrOut)
	o.logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	o.logger.SetLevel(level)
	return nil
}

// Complete fills in the bucket from the positional argument and resolves
// environment fallbacks for the credential flags. This is the only place the
// environment is read.
func (o *PublishOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		o.Bucket = args[0]
	}
	o.Provider = strings.ToLower(o.Provider)

	if o.Provider == ProviderGCS {
		if o.CredentialsPath == "" {
			o.CredentialsPath = os.Getenv(credentialsEnv)
		}
		if o.Project == "" {
			o.Project = os.Getenv(projectEnv)
		}
	}
	return nil
}

// Validate checks the provider selection. The bucket is validated by
// publish.Publish so that library and command line callers fail alike.
func (o *PublishOptions) Validate() error {
	switch o.Provider {
	case ProviderGCS, ProviderS3:
	case ProviderLocal:
		if o.LocalRoot == "" {
			return &usageError{err: errors.New("--local-root is required for the local provider")}
		}
	default:
		return &usageError{err: errors.Errorf("unsupported provider %q", o.Provider)}
	}
	return nil
}

// Run publishes the artifact and prints its location.
func (o *PublishOptions) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.logger == nil {
		if err := o.setupLogging(); err != nil {
			return err
		}
	}

	auth, err := o.newAuthenticator()
	if err != nil {
		return err
	}

	result, err := publish.Publish(ctx, publish.Config{
		Bucket: o.Bucket,
		Source: o.Source,
		Prefix: o.Prefix,
		Credentials: storage.Credentials{
			File:    o.CredentialsPath,
			Project: o.Project,
		},
		Logger: o.logger,
	}, auth)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.Out, "Uploaded deployment package to %s\n", result.URI)
	return nil
}

func (o *PublishOptions) newAuthenticator() (storage.Authenticator, error) {
	if o.authenticator != nil {
		return o.authenticator, nil
	}

	switch o.Provider {
	case ProviderS3:
		return storage.NewS3Authenticator(), nil
	case ProviderLocal:
		return storage.NewLocalAuthenticator(o.LocalRoot)
	default:
		return storage.NewGCSAuthenticator(), nil
	}
}

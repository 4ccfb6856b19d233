package cmd

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		Package a directory into a tar.gz archive and upload it to an object
		store as a timestamped deployment artifact.

		Credentials are taken from --credentials, then the
		GOOGLE_APPLICATION_CREDENTIALS environment variable, then the ambient
		default credentials of the environment. The project is taken from
		--project, then GCP_PROJECT_ID.`)

	rootExamples = templates.Examples(`
		# Upload the application root to a bucket
		publish my-bucket

		# Upload a specific directory under a release prefix
		publish my-bucket --source ./dist --prefix releases/

		# Authenticate with a service account key
		publish my-bucket --credentials key.json --project my-project

		# Write the artifact to a local directory instead of a cloud bucket
		publish my-bucket --provider local --local-root /tmp/artifacts`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// NewRootCommand creates the `publish` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewPublishOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `publish` command bound to o.
func NewRootCommandWithArgs(o *PublishOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "publish BUCKET [flags]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Upload the application source as a deployment artifact",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}

	cmd.SetOut(o.Out)
	cmd.SetErr(o.ErrOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	o.AddFlags(cmd)

	// The global normalisation function ensures that all flags specified meet
	// the desired format, warning about and changing users' input if
	// necessary.
	warnings := printer.NewWarningPrinter(o.ErrOut, printer.WarningPrinterOptions{Color: true})
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(warnings))

	return cmd
}

// usageError marks failures to parse the command line, as opposed to
// failures of the deployment itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

// Execute runs cmd and returns the process exit code. Deployment failures are
// reported on a single line of standard error and exit with 1; command line
// misuse prints the usage and exits with 2.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	return reportError(cmd.ErrOrStderr(), cmd.UsageString(), err)
}

func reportError(w io.Writer, usage string, err error) int {
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(w, "Error: %v\n%s", uerr, usage)
		return 2
	}
	fmt.Fprintf(w, "Deployment failed: %v\n", err)
	return 1
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}

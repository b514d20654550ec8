package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docref/internal/cli/ui"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configPath string
	noColor    bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docref",
		Short: "Relation integrity and population for document stores",
		Long: color.CyanString(`docref - relations for schemaless documents

docref keeps references between stored documents honest:
  • writes are rejected when a checked reference points at nothing
  • deletes are rejected while a checked reference still points at the document
  • reads can populate references with the documents they point at

Entity types and relations are declared in docref.yml.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./docref.yml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewSchemaCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewPopulateCommand())
	rootCmd.AddCommand(NewInsertCommand())
	rootCmd.AddCommand(NewUpdateCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewAuditCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewServeCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the docref version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "docref version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// commandError carries what the error renderer needs to suggest alternatives
type commandError struct {
	err        error
	collection string
	registry   *schema.Registry
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

// withCollection attaches the addressed collection to err
func withCollection(err error, collection string, a *app) error {
	if err == nil {
		return nil
	}
	return &commandError{err: err, collection: collection, registry: a.registry}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var cmdErr *commandError
		if errors.As(err, &cmdErr) {
			opts := ui.DescribeError(cmdErr.err, cmdErr.collection, cmdErr.registry)
			opts.NoColor = noColor
			ui.WriteError(rootCmd.ErrOrStderr(), opts)
		} else {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}

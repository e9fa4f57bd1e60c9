// Package cli implements the fieldsync diagnostics CLI: inspection of the
// outbox, cache and dead-letter log, plus a manual sync trigger.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/tracing"
)

// Version identifies the CLI build.
var Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	Verbose  bool
	Format   string // "json" | "text"
	Trace    string // span output file, empty disables tracing
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fieldsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "fieldsync - offline-first sync engine diagnostics",
		Long:  "Inspect and drive a fieldsync local database: pending outbox operations, cached reads, dead letters, and manual sync.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Trace != "" {
				if err := tracing.Init("fieldsync", Version, opts.Trace); err != nil {
					return fmt.Errorf("init tracing: %w", err)
				}
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "fieldsync.db", "path to the local database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Trace, "trace", "", "write OpenTelemetry spans to this file")

	// Add subcommands
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewDeadLettersCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

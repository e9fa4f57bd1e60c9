package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CacheOptions holds flags for the cache command.
type CacheOptions struct {
	*RootOptions
	Clean bool
}

// CacheResult holds the cache command output.
type CacheResult struct {
	Count   int  `json:"count"`
	Swept   int  `json:"swept"`
	Cleaned bool `json:"cleaned"`
}

// NewCacheCommand creates the cache command.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the read cache",
		Long: `Show the cached entry count and optionally purge expired entries.

Examples:
  fieldsync cache --db ./app.db
  fieldsync cache --db ./app.db --clean`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "purge expired entries before counting")

	return cmd
}

func runCache(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openStore(opts.RootOptions)
	if err != nil {
		formatter.Error("E001", err.Error(), nil)
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	result := CacheResult{Cleaned: opts.Clean}

	if opts.Clean {
		swept, err := s.DeleteExpired(ctx)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, "failed to purge expired entries", err)
			formatter.Error("E003", wrapped.Error(), nil)
			return wrapped
		}
		result.Swept = swept
	}

	count, err := s.CacheCount(ctx)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "failed to count cache entries", err)
		formatter.Error("E003", wrapped.Error(), nil)
		return wrapped
	}
	result.Count = count

	text := fmt.Sprintf("Cached entries: %d\n", result.Count)
	if opts.Clean {
		text = fmt.Sprintf("Purged expired entries: %d\nCached entries: %d\n", result.Swept, result.Count)
	}
	return formatter.SuccessText(text, result)
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/engine"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show engine counts",
		Long: `Show observability counts: pending operations, cached entries,
and dead letters.

The cache count is approximate - it includes expired entries that the
periodic sweep has not removed yet.

Examples:
  fieldsync stats --db ./app.db
  fieldsync stats --db ./app.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
	return cmd
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openStore(opts)
	if err != nil {
		formatter.Error("E001", err.Error(), nil)
		return err
	}
	defer s.Close()

	stats, err := engine.CollectStats(cmd.Context(), s)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "failed to collect stats", err)
		formatter.Error("E003", wrapped.Error(), nil)
		return wrapped
	}

	return formatter.SuccessText(renderStats(stats), stats)
}

func renderStats(stats engine.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pending operations: %d\n", stats.PendingCount)
	fmt.Fprintf(&b, "Cached entries:     %d\n", stats.CacheCount)
	fmt.Fprintf(&b, "Dead letters:       %d\n", stats.DeadLetterCount)
	return b.String()
}

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/engine"
	"github.com/fieldsync/fieldsync/internal/netmon"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Timeout  time.Duration
	RetryAll bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued operations now",
		Long: `Run one sync cycle against the remote service, replaying all queued
operations in order. Queued operations carry their full URLs, so no
server address is needed here.

Exits 1 if any operation failed; failed operations stay queued (or move
to the dead-letter log) for the next attempt.

Examples:
  fieldsync sync --db ./app.db
  fieldsync sync --db ./app.db --timeout 10s --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-operation network timeout")
	cmd.Flags().BoolVar(&opts.RetryAll, "retry-all", false, "treat every failure as retryable, including 4xx rejections")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
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

	policy := engine.RetryTransient
	policyName := "transient"
	if opts.RetryAll {
		policy = engine.RetryAll
		policyName = "all"
	}
	// Dead-lettered outcomes look identical under both policies; let
	// operators see which classification was in effect.
	formatter.VerboseLog("retry policy: %s", policyName)

	// A manual trigger asserts connectivity; the transport finds out the
	// truth per operation.
	monitor := netmon.New(true)
	orch := engine.NewOrchestrator(s, monitor, engine.NewHTTPTransport(opts.Timeout),
		engine.WithRetryPolicy(policy),
	)

	result := orch.Sync(cmd.Context())

	failed := 0
	for _, outcome := range result.Outcomes {
		if !outcome.Success {
			failed++
		}
	}

	if err := formatter.SuccessText(renderSync(result, failed), result); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d operations failed", failed, len(result.Outcomes)))
	}
	return nil
}

func renderSync(result engine.SyncResult, failed int) string {
	var b strings.Builder
	if len(result.Outcomes) == 0 {
		b.WriteString("Nothing to sync\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Replayed %d operations (%d failed)\n", len(result.Outcomes), failed)
	for _, outcome := range result.Outcomes {
		switch {
		case outcome.Success:
			fmt.Fprintf(&b, "  [%d] delivered\n", outcome.OperationID)
		case outcome.Evicted:
			fmt.Fprintf(&b, "  [%d] dead-lettered: %s\n", outcome.OperationID, outcome.Err)
		default:
			fmt.Fprintf(&b, "  [%d] failed, will retry: %s\n", outcome.OperationID, outcome.Err)
		}
	}
	return b.String()
}

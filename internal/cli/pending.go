package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/store"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	OpType string
	Since  string // RFC3339 lower bound on enqueued_at
}

// PendingRow is one queued operation in the command output.
type PendingRow struct {
	ID         int64  `json:"id"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	OpType     string `json:"op_type,omitempty"`
	EnqueuedAt string `json:"enqueued_at"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// PendingResult holds the complete pending listing.
type PendingResult struct {
	Count      int          `json:"count"`
	Operations []PendingRow `json:"operations"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List queued outbox operations",
		Long: `List all not-yet-delivered operations in replay order.

Examples:
  fieldsync pending --db ./app.db
  fieldsync pending --db ./app.db --type workflow
  fieldsync pending --db ./app.db --since 2026-08-01T00:00:00Z --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OpType, "type", "", "filter by operation type tag")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only operations enqueued at or after this RFC3339 timestamp")

	return cmd
}

func runPending(opts *PendingOptions, cmd *cobra.Command) error {
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

	var ops []store.PendingOperation
	switch {
	case opts.OpType != "":
		ops, err = s.ListByType(ctx, opts.OpType)
	case opts.Since != "":
		var since time.Time
		since, err = time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, "invalid --since timestamp", err)
			formatter.Error("E002", wrapped.Error(), nil)
			return wrapped
		}
		ops, err = s.ListSince(ctx, since)
	default:
		ops, err = s.ListAll(ctx)
	}
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "failed to list pending operations", err)
		formatter.Error("E003", wrapped.Error(), nil)
		return wrapped
	}

	result := PendingResult{Count: len(ops), Operations: make([]PendingRow, 0, len(ops))}
	for _, op := range ops {
		result.Operations = append(result.Operations, PendingRow{
			ID:         op.ID,
			Method:     op.Method,
			URL:        op.URL,
			OpType:     op.OpType,
			EnqueuedAt: op.EnqueuedAt.Format(time.RFC3339),
			RetryCount: op.RetryCount,
			MaxRetries: op.MaxRetries,
		})
	}

	return formatter.SuccessText(renderPending(result), result)
}

func renderPending(result PendingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pending operations: %d\n", result.Count)
	for _, row := range result.Operations {
		fmt.Fprintf(&b, "  [%d] %s %s", row.ID, row.Method, row.URL)
		if row.OpType != "" {
			fmt.Fprintf(&b, " (%s)", row.OpType)
		}
		fmt.Fprintf(&b, " retries=%d/%d enqueued=%s\n", row.RetryCount, row.MaxRetries, row.EnqueuedAt)
	}
	return b.String()
}

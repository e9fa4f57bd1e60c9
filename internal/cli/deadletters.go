package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DeadLettersOptions holds flags for the deadletters command.
type DeadLettersOptions struct {
	*RootOptions
	PruneOlderThan time.Duration
}

// DeadLetterRow is one evicted operation in the command output.
type DeadLetterRow struct {
	ID         int64  `json:"id"`
	OpID       int64  `json:"op_id"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	OpType     string `json:"op_type,omitempty"`
	DeadAt     string `json:"dead_at"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

// DeadLettersResult holds the complete dead-letter listing.
type DeadLettersResult struct {
	Count   int             `json:"count"`
	Pruned  int             `json:"pruned,omitempty"`
	Letters []DeadLetterRow `json:"letters"`
}

// NewDeadLettersCommand creates the deadletters command.
func NewDeadLettersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeadLettersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List evicted operations",
		Long: `List operations dropped after exhausting their retry budget or
failing permanently, with the final error that killed each one.

Examples:
  fieldsync deadletters --db ./app.db
  fieldsync deadletters --db ./app.db --prune-older-than 720h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeadLetters(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.PruneOlderThan, "prune-older-than", 0, "remove records older than this duration before listing")

	return cmd
}

func runDeadLetters(opts *DeadLettersOptions, cmd *cobra.Command) error {
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
	var result DeadLettersResult

	if opts.PruneOlderThan > 0 {
		cutoff := time.Now().UTC().Add(-opts.PruneOlderThan)
		pruned, err := s.PruneDeadLetters(ctx, cutoff)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, "failed to prune dead letters", err)
			formatter.Error("E003", wrapped.Error(), nil)
			return wrapped
		}
		result.Pruned = pruned
	}

	letters, err := s.DeadLetters(ctx)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "failed to list dead letters", err)
		formatter.Error("E003", wrapped.Error(), nil)
		return wrapped
	}

	result.Count = len(letters)
	result.Letters = make([]DeadLetterRow, 0, len(letters))
	for _, dl := range letters {
		result.Letters = append(result.Letters, DeadLetterRow{
			ID:         dl.ID,
			OpID:       dl.OpID,
			Method:     dl.Method,
			URL:        dl.URL,
			OpType:     dl.OpType,
			DeadAt:     dl.DeadAt.Format(time.RFC3339),
			RetryCount: dl.RetryCount,
			Reason:     dl.Reason,
		})
	}

	return formatter.SuccessText(renderDeadLetters(result), result)
}

func renderDeadLetters(result DeadLettersResult) string {
	var b strings.Builder
	if result.Pruned > 0 {
		fmt.Fprintf(&b, "Pruned: %d\n", result.Pruned)
	}
	fmt.Fprintf(&b, "Dead letters: %d\n", result.Count)
	for _, row := range result.Letters {
		fmt.Fprintf(&b, "  [%d] %s %s", row.OpID, row.Method, row.URL)
		if row.OpType != "" {
			fmt.Fprintf(&b, " (%s)", row.OpType)
		}
		fmt.Fprintf(&b, " died=%s after %d retries: %s\n", row.DeadAt, row.RetryCount, row.Reason)
	}
	return b.String()
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/store"
)

// seedDatabase builds a database with a fixed clock so command output is
// byte-for-byte reproducible: two pending operations, one cached entry and
// one dead letter.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.db")

	fixed := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s, err := store.Open(path, store.WithNow(func() time.Time { return fixed }))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Enqueue(ctx, store.PendingOperationInput{
		URL:    "http://api.test/items",
		Method: "POST",
		Body:   []byte(`{"name":"pump"}`),
		OpType: "item",
	})
	require.NoError(t, err)

	_, err = s.Enqueue(ctx, store.PendingOperationInput{
		URL:    "http://api.test/items/1",
		Method: "PUT",
		Body:   []byte(`{"name":"valve"}`),
		OpType: "workflow",
	})
	require.NoError(t, err)

	deadID, err := s.Enqueue(ctx, store.PendingOperationInput{
		URL:    "http://api.test/broken",
		Method: "POST",
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	evicted, err := s.MoveToDeadLetter(ctx, deadID, "connection refused")
	require.NoError(t, err)
	require.True(t, evicted)

	require.NoError(t, s.PutCached(ctx, "items:list", []byte(`[]`), time.Hour))

	return path
}

// runCommand executes the CLI with args and returns combined stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func goldenAssert(t *testing.T, name string, output string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(output))
}

func TestStatsCommand_Text(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "stats", "--db", db)
	require.NoError(t, err)

	goldenAssert(t, "stats_text", out)
}

func TestStatsCommand_JSON(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "stats", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["pending_count"])
	assert.Equal(t, float64(1), data["cache_count"])
	assert.Equal(t, float64(1), data["dead_letter_count"])
}

func TestPendingCommand_Text(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "pending", "--db", db)
	require.NoError(t, err)

	goldenAssert(t, "pending_text", out)
}

func TestPendingCommand_TypeFilter(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "pending", "--db", db, "--type", "workflow")
	require.NoError(t, err)

	assert.Contains(t, out, "Pending operations: 1")
	assert.Contains(t, out, "http://api.test/items/1")
	assert.NotContains(t, out, "http://api.test/items (")
}

func TestPendingCommand_InvalidSince(t *testing.T) {
	db := seedDatabase(t)

	_, err := runCommand(t, "pending", "--db", db, "--since", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDeadLettersCommand_Text(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "deadletters", "--db", db)
	require.NoError(t, err)

	goldenAssert(t, "deadletters_text", out)
}

func TestCacheCommand_Clean(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "cache", "--db", db, "--clean")
	require.NoError(t, err)

	assert.Contains(t, out, "Purged expired entries: 0")
	assert.Contains(t, out, "Cached entries: 1")
}

func TestSyncCommand_EmptyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err := runCommand(t, "sync", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to sync")
}

func TestSyncCommand_VerboseShowsRetryPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err := runCommand(t, "sync", "--db", path, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "retry policy: transient")

	out, err = runCommand(t, "sync", "--db", path, "-v", "--retry-all")
	require.NoError(t, err)
	assert.Contains(t, out, "retry policy: all")
}

func TestMissingDatabaseFailsWithCommandError(t *testing.T) {
	_, err := runCommand(t, "stats", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormatIsRejected(t *testing.T) {
	db := seedDatabase(t)

	_, err := runCommand(t, "stats", "--db", db, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError), "plain errors default to 1")
	wrapped := WrapExitError(ExitFailure, "sync failed", assert.AnError)
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "sync failed")
}

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM pending").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"pending", "cache", "dead_letters"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}

func TestFormatTime_FixedWidthOrdering(t *testing.T) {
	// Lexicographic order of rendered timestamps must match time order;
	// the SQL range scans depend on it. The tricky case is a whole-second
	// timestamp against a fractional one.
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	later := base.Add(500 * time.Millisecond)

	a, b := formatTime(base), formatTime(later)
	if !(a < b) {
		t.Errorf("formatTime ordering broken: %q should sort before %q", a, b)
	}

	parsed, err := parseTime(a)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !parsed.Equal(base) {
		t.Errorf("round-trip mismatch: got %v, want %v", parsed, base)
	}
}

func TestStore_CollectionsIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, PendingOperationInput{URL: "http://x/items", Method: "POST"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := s.PutCached(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("PutCached failed: %v", err)
	}

	pending, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	cached, err := s.CacheCount(ctx)
	if err != nil {
		t.Fatalf("CacheCount failed: %v", err)
	}
	if pending != 1 || cached != 1 {
		t.Errorf("counts = (%d, %d), expected (1, 1)", pending, cached)
	}

	if err := s.InvalidateCached(ctx, "k"); err != nil {
		t.Fatalf("InvalidateCached failed: %v", err)
	}
	pending, _ = s.PendingCount(ctx)
	if pending != 1 {
		t.Errorf("cache invalidation touched the outbox: pending = %d", pending)
	}
}

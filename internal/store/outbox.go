package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultMaxRetries is the retry budget assigned when an enqueue request
// does not specify one.
const DefaultMaxRetries = 3

// PendingOperation is one not-yet-delivered mutating call queued in the
// outbox. All fields except RetryCount are immutable after enqueue.
type PendingOperation struct {
	ID         int64
	URL        string
	Method     string
	Headers    map[string]string
	Body       []byte
	Payload    []byte
	OpType     string
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
}

// PendingOperationInput carries the caller-supplied fields for Enqueue.
// Body is the serialized payload snapshot sent on replay; Payload is the
// pre-serialization value returned optimistically to the caller.
type PendingOperationInput struct {
	URL        string
	Method     string
	Headers    map[string]string
	Body       []byte
	Payload    []byte
	OpType     string
	MaxRetries int
}

// DeadLetter is an operation evicted from the outbox after exhausting its
// retry budget or failing permanently.
type DeadLetter struct {
	ID         int64
	OpID       int64
	URL        string
	Method     string
	OpType     string
	Body       []byte
	EnqueuedAt time.Time
	DeadAt     time.Time
	RetryCount int
	Reason     string
}

// Enqueue appends an operation at the tail of the outbox with retry_count 0
// and returns the assigned id. Ids are monotonically assigned by SQLite
// AUTOINCREMENT, so enqueue order and id order coincide.
//
// A non-positive MaxRetries is replaced with DefaultMaxRetries.
func (s *Store) Enqueue(ctx context.Context, in PendingOperationInput) (int64, error) {
	headersJSON, err := marshalHeaders(in.Headers)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}

	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending
		(url, method, headers, body, payload, op_type, enqueued_at, retry_count, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		in.URL,
		in.Method,
		headersJSON,
		in.Body,
		in.Payload,
		in.OpType,
		formatTime(s.now()),
		maxRetries,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue: last insert id: %w", err)
	}

	return id, nil
}

// ListAll returns all queued operations in enqueue order (FIFO).
// This ordering is load-bearing: the orchestrator replays the returned slice
// front to back and must not reorder writes.
//
// Returns an empty slice (not nil) if the outbox is empty.
func (s *Store) ListAll(ctx context.Context) ([]PendingOperation, error) {
	return s.listPending(ctx, `
		SELECT id, url, method, headers, body, payload, op_type, enqueued_at, retry_count, max_retries
		FROM pending
		ORDER BY id ASC
	`)
}

// ListByType returns queued operations with the given caller-supplied
// category tag, in enqueue order. Diagnostic scan, not used by replay.
func (s *Store) ListByType(ctx context.Context, opType string) ([]PendingOperation, error) {
	return s.listPending(ctx, `
		SELECT id, url, method, headers, body, payload, op_type, enqueued_at, retry_count, max_retries
		FROM pending
		WHERE op_type = ?
		ORDER BY id ASC
	`, opType)
}

// ListSince returns queued operations enqueued at or after t, in enqueue
// order. Diagnostic scan, not used by replay.
func (s *Store) ListSince(ctx context.Context, t time.Time) ([]PendingOperation, error) {
	return s.listPending(ctx, `
		SELECT id, url, method, headers, body, payload, op_type, enqueued_at, retry_count, max_retries
		FROM pending
		WHERE enqueued_at >= ?
		ORDER BY id ASC
	`, formatTime(t))
}

func (s *Store) listPending(ctx context.Context, query string, args ...any) ([]PendingOperation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var ops []PendingOperation
	for rows.Next() {
		op, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}

	if ops == nil {
		ops = []PendingOperation{}
	}

	return ops, nil
}

func scanPending(rows *sql.Rows) (PendingOperation, error) {
	var (
		op          PendingOperation
		headersJSON string
		enqueuedAt  string
	)
	if err := rows.Scan(
		&op.ID,
		&op.URL,
		&op.Method,
		&headersJSON,
		&op.Body,
		&op.Payload,
		&op.OpType,
		&enqueuedAt,
		&op.RetryCount,
		&op.MaxRetries,
	); err != nil {
		return PendingOperation{}, fmt.Errorf("scan pending: %w", err)
	}

	headers, err := unmarshalHeaders(headersJSON)
	if err != nil {
		return PendingOperation{}, fmt.Errorf("scan pending: %w", err)
	}
	op.Headers = headers

	t, err := parseTime(enqueuedAt)
	if err != nil {
		return PendingOperation{}, fmt.Errorf("scan pending: %w", err)
	}
	op.EnqueuedAt = t

	return op, nil
}

// Remove deletes an operation by id. Idempotent - removing an absent id is
// a no-op, never an error. A removed operation is never reinserted.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove pending %d: %w", id, err)
	}
	return nil
}

// IncrementRetry increments an operation's retry counter after a failed
// replay. If the new count reaches the operation's retry budget the
// operation is moved to dead_letters instead of persisting the increment,
// with reason recorded as the final error. Returns evicted=true in that
// case.
//
// Incrementing an absent id is a no-op.
func (s *Store) IncrementRetry(ctx context.Context, id int64, reason string) (evicted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("increment retry %d: begin tx: %w", id, err)
	}
	defer tx.Rollback() // No-op if committed

	var (
		retryCount int
		maxRetries int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT retry_count, max_retries FROM pending WHERE id = ?
	`, id).Scan(&retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("increment retry %d: %w", id, err)
	}

	retryCount++
	if retryCount >= maxRetries {
		if err := moveToDeadLetterTx(ctx, tx, id, retryCount, reason, s.now()); err != nil {
			return false, fmt.Errorf("increment retry %d: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("increment retry %d: commit: %w", id, err)
		}
		return true, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pending SET retry_count = ? WHERE id = ?
	`, retryCount, id); err != nil {
		return false, fmt.Errorf("increment retry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("increment retry %d: commit: %w", id, err)
	}
	return false, nil
}

// MoveToDeadLetter evicts an operation immediately, regardless of its
// remaining retry budget. Used for permanent failures that retrying cannot
// fix. Returns evicted=false if the id is absent.
func (s *Store) MoveToDeadLetter(ctx context.Context, id int64, reason string) (evicted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("dead-letter %d: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	var retryCount int
	err = tx.QueryRowContext(ctx, `
		SELECT retry_count FROM pending WHERE id = ?
	`, id).Scan(&retryCount)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dead-letter %d: %w", id, err)
	}

	if err := moveToDeadLetterTx(ctx, tx, id, retryCount, reason, s.now()); err != nil {
		return false, fmt.Errorf("dead-letter %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("dead-letter %d: commit: %w", id, err)
	}
	return true, nil
}

// moveToDeadLetterTx copies a pending row into dead_letters and deletes it
// from pending, inside the caller's transaction.
func moveToDeadLetterTx(ctx context.Context, tx *sql.Tx, id int64, retryCount int, reason string, deadAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters
		(op_id, url, method, op_type, body, enqueued_at, dead_at, retry_count, reason)
		SELECT id, url, method, op_type, body, enqueued_at, ?, ?, ?
		FROM pending WHERE id = ?
	`, formatTime(deadAt), retryCount, reason, id)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}

	return nil
}

// PendingCount returns the number of queued operations.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// DeadLetters returns all dead-letter records, oldest first.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op_id, url, method, op_type, body, enqueued_at, dead_at, retry_count, reason
		FROM dead_letters
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var (
			dl         DeadLetter
			enqueuedAt string
			deadAt     string
		)
		if err := rows.Scan(
			&dl.ID,
			&dl.OpID,
			&dl.URL,
			&dl.Method,
			&dl.OpType,
			&dl.Body,
			&enqueuedAt,
			&deadAt,
			&dl.RetryCount,
			&dl.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if dl.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if dl.DeadAt, err = parseTime(deadAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		letters = append(letters, dl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}

	if letters == nil {
		letters = []DeadLetter{}
	}

	return letters, nil
}

// DeadLetterCount returns the number of dead-letter records.
func (s *Store) DeadLetterCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return count, nil
}

// PruneDeadLetters removes dead-letter records evicted before the cutoff.
// Returns the number of records removed.
func (s *Store) PruneDeadLetters(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM dead_letters WHERE dead_at < ?
	`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: rows affected: %w", err)
	}
	return int(n), nil
}

// marshalHeaders serializes a header map to a JSON object.
// A nil map serializes as the empty object so the column is never NULL.
func marshalHeaders(headers map[string]string) (string, error) {
	if headers == nil {
		return "{}", nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	return string(data), nil
}

// unmarshalHeaders parses a JSON header object stored by marshalHeaders.
// The empty object parses to nil to keep round-trips cheap to compare.
func unmarshalHeaders(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(data), &headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	return headers, nil
}

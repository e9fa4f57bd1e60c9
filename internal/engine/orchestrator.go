package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldsync/fieldsync/internal/netmon"
	"github.com/fieldsync/fieldsync/internal/store"
)

// SyncOutcome is the ephemeral result of one replay attempt. Never
// persisted.
type SyncOutcome struct {
	OperationID int64  `json:"operation_id"`
	Success     bool   `json:"success"`
	Evicted     bool   `json:"evicted,omitempty"`
	Err         string `json:"error,omitempty"`
}

// SyncResult aggregates the outcomes of one sync cycle.
type SyncResult struct {
	CycleID  string        `json:"cycle_id"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Outcomes []SyncOutcome `json:"outcomes"`
}

// Attempted returns how many operations the cycle replayed.
func (r SyncResult) Attempted() int { return len(r.Outcomes) }

// Orchestrator replays the outbox against the remote service.
//
// Exactly one Sync invocation may be active at a time, enforced by an
// in-memory flag: overlapping callers (a manual trigger racing the
// reconnect trigger) see a no-op with an empty result, not a queued second
// pass.
type Orchestrator struct {
	store     *store.Store
	net       *netmon.Monitor
	transport Transport
	policy    RetryPolicy
	clock     Clock
	logger    *slog.Logger
	tracer    trace.Tracer

	inProgress atomic.Bool
	notifier   notifier
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryPolicy overrides the default RetryTransient policy.
func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithClock overrides the orchestrator's time source.
func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger overrides the orchestrator's logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator over the given store, monitor and
// transport.
func NewOrchestrator(s *store.Store, net *netmon.Monitor, transport Transport, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:     s,
		net:       net,
		transport: transport,
		policy:    RetryTransient,
		clock:     SystemClock(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("fieldsync/engine"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnComplete registers a listener for batch completion notifications and
// returns a token for RemoveListener. Listeners run synchronously at the
// end of every cycle that actually replayed operations.
func (o *Orchestrator) OnComplete(fn SyncListener) int64 {
	return o.notifier.add(fn)
}

// RemoveListener removes a completion listener. No-op if absent.
func (o *Orchestrator) RemoveListener(id int64) {
	o.notifier.remove(id)
}

// InProgress reports whether a sync cycle is currently running.
func (o *Orchestrator) InProgress() bool {
	return o.inProgress.Load()
}

// Sync replays all queued operations in FIFO order, strictly sequentially.
//
// Guards: if the monitor reports offline, or a cycle is already in
// progress, Sync is a no-op returning an empty result.
//
// Per-operation failures never abort the loop and Sync itself never fails:
// a storage error listing the outbox ends the cycle early with whatever was
// recorded, leaving the queue untouched for the next trigger.
func (o *Orchestrator) Sync(ctx context.Context) SyncResult {
	if !o.net.Online() {
		return SyncResult{}
	}
	if !o.inProgress.CompareAndSwap(false, true) {
		return SyncResult{}
	}
	defer o.inProgress.Store(false)

	result := SyncResult{
		CycleID: uuid.NewString(),
		Started: o.clock.Now(),
	}

	ctx, span := o.tracer.Start(ctx, "sync.cycle",
		trace.WithAttributes(attribute.String("sync.cycle_id", result.CycleID)))
	defer span.End()

	ops, err := o.store.ListAll(ctx)
	if err != nil {
		o.logger.Error("sync: listing outbox failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list outbox")
		result.Finished = o.clock.Now()
		return result
	}
	span.SetAttributes(attribute.Int("sync.pending", len(ops)))

	if len(ops) == 0 {
		result.Finished = o.clock.Now()
		return result
	}

	o.logger.Info("sync: cycle started", "cycle_id", result.CycleID, "pending", len(ops))

	// Strictly sequential: operation i+1 is not attempted until operation
	// i's outcome is recorded.
	for _, op := range ops {
		result.Outcomes = append(result.Outcomes, o.replay(ctx, op))
	}

	result.Finished = o.clock.Now()
	o.logger.Info("sync: cycle finished",
		"cycle_id", result.CycleID,
		"attempted", len(result.Outcomes),
		"duration", result.Finished.Sub(result.Started),
	)

	o.notifier.publish(result)
	return result
}

// replay issues one queued operation and records its outcome in the store.
func (o *Orchestrator) replay(ctx context.Context, op store.PendingOperation) SyncOutcome {
	ctx, span := o.tracer.Start(ctx, "sync.replay",
		trace.WithAttributes(
			attribute.Int64("op.id", op.ID),
			attribute.String("op.method", op.Method),
			attribute.String("op.url", op.URL),
			attribute.String("op.type", op.OpType),
			attribute.Int("op.retry_count", op.RetryCount),
		))
	defer span.End()

	res, err := o.callTransport(ctx, op)

	if err == nil && res.OK() {
		if rmErr := o.store.Remove(ctx, op.ID); rmErr != nil {
			// The call succeeded but the queue entry survived; it will be
			// replayed again next cycle. Last-write-wins at the server makes
			// the duplicate harmless, so still report success.
			o.logger.Error("sync: removing delivered operation failed", "op_id", op.ID, "error", rmErr)
		}
		o.logger.Info("sync: operation delivered", "op_id", op.ID, "status", res.Status)
		return SyncOutcome{OperationID: op.ID, Success: true}
	}

	var (
		failure   *Error
		status    int
		retryable bool
	)
	if err != nil {
		failure = NewTransportError(op.URL, err)
		retryable = o.policy(0, err)
	} else {
		status = res.Status
		failure = NewRemoteRejection(op.URL, status)
		retryable = o.policy(status, nil)
	}
	span.RecordError(failure)
	span.SetStatus(codes.Error, string(failure.Code))

	var (
		evicted  bool
		storeErr error
	)
	if retryable {
		evicted, storeErr = o.store.IncrementRetry(ctx, op.ID, failure.Error())
	} else {
		evicted, storeErr = o.store.MoveToDeadLetter(ctx, op.ID, failure.Error())
	}
	if storeErr != nil {
		o.logger.Error("sync: recording failed attempt", "op_id", op.ID, "error", storeErr)
	}

	if evicted {
		o.logger.Warn("sync: operation dead-lettered",
			"op_id", op.ID,
			"op_type", op.OpType,
			"retryable", retryable,
			"reason", failure.Error(),
		)
	} else {
		o.logger.Warn("sync: operation failed, will retry",
			"op_id", op.ID,
			"retry_count", op.RetryCount+1,
			"max_retries", op.MaxRetries,
			"reason", failure.Error(),
		)
	}

	return SyncOutcome{
		OperationID: op.ID,
		Success:     false,
		Evicted:     evicted,
		Err:         failure.Error(),
	}
}

// callTransport shields the replay loop from a panicking Transport
// implementation - one misbehaving operation must not abort the cycle.
func (o *Orchestrator) callTransport(ctx context.Context, op store.PendingOperation) (res *TransportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return o.transport.RoundTrip(ctx, op.Method, op.URL, op.Headers, op.Body)
}

// Package fieldsync is an offline-first synchronization engine for clients
// of an HTTP-style service.
//
// A Client keeps reads and writes working while connectivity is
// intermittent: reads are served from a time-boxed local cache, writes that
// cannot reach the network are captured in a durable outbox and replayed -
// in order, one at a time - once connectivity returns. Entity schemas,
// validation and routing stay with the remote service; the engine only
// moves opaque payloads.
//
// Typical usage:
//
//	client, err := fieldsync.Open("app.db",
//		fieldsync.WithBaseURL("https://api.example.com"))
//	if err != nil { ... }
//	defer client.Close()
//
//	resp := client.Post(ctx, "/workflows", payload, fieldsync.RequestOptions{
//		QueueOffline: true,
//		OpType:       "workflow",
//	})
//	if resp.Queued {
//		// write captured locally, will sync later
//	}
package fieldsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/engine"
	"github.com/fieldsync/fieldsync/internal/netmon"
	"github.com/fieldsync/fieldsync/internal/store"
	"github.com/fieldsync/fieldsync/internal/tracing"
)

// Re-exported internal types forming the public surface. Embedders outside
// this module cannot import internal packages, so every type a Client
// method or Option accepts or returns must be nameable here.
type (
	// Request is one logical call issued through the client.
	Request = engine.Request
	// RequestOptions carry the per-call cache/queue knobs.
	RequestOptions = engine.RequestOptions
	// Response is the client's answer to a logical request.
	Response = engine.Response
	// SyncOutcome is the result of one replay attempt.
	SyncOutcome = engine.SyncOutcome
	// SyncResult aggregates one sync cycle's outcomes.
	SyncResult = engine.SyncResult
	// Stats exposes the engine's observable counts.
	Stats = engine.Stats
	// Transport is the network collaborator behind the client; embedders
	// implement it to script or replace the default HTTP transport.
	Transport = engine.Transport
	// TransportResult is the outcome of one network call.
	TransportResult = engine.TransportResult
	// Clock is the client's time source seam.
	Clock = engine.Clock
	// ManualClock is a settable clock for tests.
	ManualClock = engine.ManualClock
	// RetryPolicy classifies replay failures as retryable or permanent.
	RetryPolicy = engine.RetryPolicy
	// PendingOperation is one queued outbox operation.
	PendingOperation = store.PendingOperation
	// PendingOperationInput carries the caller-supplied fields for Enqueue.
	PendingOperationInput = store.PendingOperationInput
	// DeadLetter is an operation evicted after exhausting its retry budget
	// or failing permanently.
	DeadLetter = store.DeadLetter
)

// Re-exported retry policies for WithRetryPolicy.
var (
	// RetryTransient retries transport failures and 408/429/5xx only.
	RetryTransient RetryPolicy = engine.RetryTransient
	// RetryAll retries every failure, application rejections included.
	RetryAll RetryPolicy = engine.RetryAll
)

// NewManualClock creates a clock pinned at start, for WithClock in tests.
func NewManualClock(start time.Time) *ManualClock {
	return engine.NewManualClock(start)
}

// IsTransportError reports whether err is a transport-level failure.
func IsTransportError(err error) bool { return engine.IsTransportError(err) }

// IsRemoteRejection reports whether err is a non-2xx server response.
func IsRemoteRejection(err error) bool { return engine.IsRemoteRejection(err) }

// IsStorageError reports whether err is a durable-store failure.
func IsStorageError(err error) bool { return engine.IsStorageError(err) }

// IsNoCachedData reports whether err is the offline cache-miss error.
func IsNoCachedData(err error) bool { return engine.IsNoCachedData(err) }

// Client is the public face of the engine. All components are explicitly
// constructed and owned by the Client - there is no process-global state -
// so independent Clients over separate databases can coexist in one
// process.
type Client struct {
	cfg          config.Config
	store        *store.Store
	monitor      *netmon.Monitor
	orchestrator *engine.Orchestrator
	gateway      *engine.Gateway
	sweeper      *engine.Sweeper
	watcher      *netmon.PollWatcher
	logger       *slog.Logger
}

// Open creates a Client over the SQLite database at path, wiring the
// monitor, gateway, orchestrator and cache sweeper together. The reconnect
// trigger is installed on the monitor and the sweeper is started before
// Open returns; Close tears both down.
func Open(path string, opts ...Option) (*Client, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if path != "" {
		cfg.DBPath = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if o.tracing {
		if err := tracing.Init("fieldsync", "", o.traceFile); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	st, err := store.Open(cfg.DBPath, store.WithNow(o.clock.Now))
	if err != nil {
		return nil, err
	}

	transport := o.transport
	if transport == nil {
		transport = engine.NewHTTPTransport(cfg.RequestTimeout.Duration)
	}

	policy := o.policy
	if policy == nil {
		policy = engine.RetryTransient
		if cfg.RetryPolicy == "all" {
			policy = engine.RetryAll
		}
	}

	monitor := netmon.New(o.startOnline)

	c := &Client{
		cfg:     cfg,
		store:   st,
		monitor: monitor,
		logger:  o.logger,
	}

	c.orchestrator = engine.NewOrchestrator(st, monitor, transport,
		engine.WithRetryPolicy(policy),
		engine.WithClock(o.clock),
		engine.WithLogger(o.logger),
	)
	c.gateway = engine.NewGateway(st, monitor, transport,
		engine.WithGatewayLogger(o.logger),
		engine.WithDefaultMaxRetries(cfg.MaxRetries),
	)
	c.sweeper = engine.NewSweeper(st, cfg.SweepInterval.Duration, o.logger)

	// Reconnect drives one sync attempt. The orchestrator's own guard makes
	// overlap with a manual Sync harmless.
	monitor.OnReconnect(func() {
		c.orchestrator.Sync(context.Background())
	})

	c.sweeper.Start()

	if o.watcher != nil {
		c.watcher = o.watcher
	} else if cfg.PollURL != "" {
		c.watcher = netmon.NewPollWatcher(
			cfg.PollInterval.Duration,
			netmon.HTTPProber(cfg.PollURL, cfg.RequestTimeout.Duration),
		)
	}
	if c.watcher != nil {
		c.watcher.Start(monitor)
	}

	return c, nil
}

// Close stops the watcher and sweeper and closes the store. The Client must
// not be used afterwards. Queued operations persist for the next Open.
func (c *Client) Close() error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.sweeper.Stop()
	return c.store.Close()
}

// resolve joins a relative endpoint onto the configured base URL. Absolute
// URLs pass through untouched.
func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Request issues a fully-specified logical request through the gateway.
func (c *Client) Request(ctx context.Context, req Request) Response {
	req.URL = c.resolve(req.URL)
	return c.gateway.Do(ctx, req)
}

// Get issues a read. With a CacheKey in opts the response is cached and
// served from cache while offline.
func (c *Client) Get(ctx context.Context, endpoint string, opts RequestOptions) Response {
	return c.Request(ctx, Request{URL: endpoint, Method: "GET", Options: opts})
}

// Post issues a create-style mutation. payload is the serialized body; it
// is echoed back on optimistic responses.
func (c *Client) Post(ctx context.Context, endpoint string, payload []byte, opts RequestOptions) Response {
	return c.Request(ctx, Request{URL: endpoint, Method: "POST", Body: payload, Options: opts})
}

// Put issues a replace-style mutation.
func (c *Client) Put(ctx context.Context, endpoint string, payload []byte, opts RequestOptions) Response {
	return c.Request(ctx, Request{URL: endpoint, Method: "PUT", Body: payload, Options: opts})
}

// Patch issues a partial-update mutation.
func (c *Client) Patch(ctx context.Context, endpoint string, payload []byte, opts RequestOptions) Response {
	return c.Request(ctx, Request{URL: endpoint, Method: "PATCH", Body: payload, Options: opts})
}

// Delete issues a delete-style mutation.
func (c *Client) Delete(ctx context.Context, endpoint string, opts RequestOptions) Response {
	return c.Request(ctx, Request{URL: endpoint, Method: "DELETE", Options: opts})
}

// Sync triggers one replay cycle. No-op (empty result) while offline or
// when a cycle is already running.
func (c *Client) Sync(ctx context.Context) SyncResult {
	return c.orchestrator.Sync(ctx)
}

// OnSyncComplete registers a listener for batch completion notifications.
// Returns a token for RemoveSyncListener.
func (c *Client) OnSyncComplete(fn func(SyncResult)) int64 {
	return c.orchestrator.OnComplete(fn)
}

// RemoveSyncListener removes a completion listener. No-op if absent.
func (c *Client) RemoveSyncListener(id int64) {
	c.orchestrator.RemoveListener(id)
}

// AddNetworkListener registers a connectivity callback; it fires
// immediately with the current state, then on every transition. Returns a
// token for RemoveNetworkListener.
func (c *Client) AddNetworkListener(fn func(online bool)) int64 {
	return c.monitor.Subscribe(fn)
}

// RemoveNetworkListener removes a connectivity callback. No-op if absent.
func (c *Client) RemoveNetworkListener(id int64) {
	c.monitor.Unsubscribe(id)
}

// Online reports the current connectivity state.
func (c *Client) Online() bool {
	return c.monitor.Online()
}

// SetOnline feeds a connectivity signal from an embedder that brings its
// own platform signal instead of the built-in prober. The offline-to-online
// transition triggers a sync attempt before SetOnline returns.
func (c *Client) SetOnline(online bool) {
	c.monitor.SetOnline(online)
}

// CacheData stores data under key with the given time-to-live. Zero ttl
// means no expiry.
func (c *Client) CacheData(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.store.PutCached(ctx, key, data, ttl)
}

// GetCachedData returns the cached data for key, or ok=false if absent or
// expired.
func (c *Client) GetCachedData(ctx context.Context, key string) (data []byte, ok bool, err error) {
	return c.store.GetCached(ctx, key)
}

// InvalidateCache removes a cached entry.
func (c *Client) InvalidateCache(ctx context.Context, key string) error {
	return c.store.InvalidateCached(ctx, key)
}

// CleanExpiredCache purges expired entries immediately, independent of the
// periodic sweeper. Returns how many were removed.
func (c *Client) CleanExpiredCache(ctx context.Context) (int, error) {
	return c.sweeper.SweepNow(ctx)
}

// Enqueue appends an operation directly to the outbox, bypassing the
// gateway. Used by diagnostics and tests; normal writes go through
// Post/Put/Patch/Delete.
func (c *Client) Enqueue(ctx context.Context, in PendingOperationInput) (int64, error) {
	return c.store.Enqueue(ctx, in)
}

// ListPending returns all queued operations in replay order.
func (c *Client) ListPending(ctx context.Context) ([]PendingOperation, error) {
	return c.store.ListAll(ctx)
}

// RemovePending deletes a queued operation by id. Idempotent.
func (c *Client) RemovePending(ctx context.Context, id int64) error {
	return c.store.Remove(ctx, id)
}

// DeadLetters returns operations evicted after exhausting their retry
// budget or failing permanently.
func (c *Client) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	return c.store.DeadLetters(ctx)
}

// GetStats returns the engine's observable counts.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	return engine.CollectStats(ctx, c.store)
}

package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldsync/fieldsync/internal/netmon"
	"github.com/fieldsync/fieldsync/internal/store"
)

// RequestOptions carry the per-call knobs for the gateway.
type RequestOptions struct {
	// CacheKey enables caching for reads: hits are served from the cache
	// while offline and successful responses are written through. Empty
	// disables caching.
	CacheKey string

	// CacheTTL bounds the cached entry's lifetime. Zero means no expiry.
	CacheTTL time.Duration

	// QueueOffline permits enqueuing this mutation when the network is
	// unavailable.
	QueueOffline bool

	// OpType is the caller-supplied category tag recorded on queued
	// operations (e.g. "workflow", "execution").
	OpType string

	// MaxRetries fixes the queued operation's retry budget. Non-positive
	// means the store default.
	MaxRetries int
}

// Request is one logical call issued through the gateway. Body is the
// serialized payload sent over the wire; Payload is the pre-serialization
// value echoed back on optimistic responses (Body is echoed when Payload is
// nil). Both are opaque to the engine.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Payload []byte
	Options RequestOptions
}

// Response is the gateway's answer to a logical request.
//
// An optimistic response (Queued true) reports Success before the remote
// service has confirmed anything: the write will be replayed later. Offline
// lets a UI show a "will sync later" indicator.
type Response struct {
	Data        []byte
	Status      int
	Success     bool
	FromCache   bool
	Offline     bool
	Queued      bool
	OperationID int64
	Err         error
}

// Gateway is the single entry point callers use to issue a logical request.
// It decides transparently whether to go to the network, the cache, or the
// outbox.
type Gateway struct {
	store      *store.Store
	net        *netmon.Monitor
	transport  Transport
	logger     *slog.Logger
	maxRetries int
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger overrides the gateway's logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithDefaultMaxRetries sets the retry budget assigned to queued operations
// whose options don't specify one.
func WithDefaultMaxRetries(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// NewGateway creates a Gateway over the given store, monitor and transport.
func NewGateway(s *store.Store, net *netmon.Monitor, transport Transport, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:      s,
		net:        net,
		transport:  transport,
		logger:     slog.Default(),
		maxRetries: store.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do issues a logical request. Reads fall back to the cache; mutations that
// cannot reach the network are queued (when permitted) and answered
// optimistically. Do never panics and only reports storage failures as
// hard errors - from the caller's point of view, a network failure on a
// queueable mutation is indistinguishable from "your write will happen
// eventually".
func (g *Gateway) Do(ctx context.Context, req Request) Response {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return g.read(ctx, req)
	}
	return g.mutate(ctx, req)
}

func (g *Gateway) read(ctx context.Context, req Request) Response {
	cacheable := req.Options.CacheKey != ""

	if !g.net.Online() {
		if cacheable {
			data, ok, err := g.store.GetCached(ctx, req.Options.CacheKey)
			if err != nil {
				return Response{Offline: true, Err: NewStorageError("cache read", err)}
			}
			if ok {
				return Response{Data: data, Success: true, FromCache: true, Offline: true}
			}
		}
		return Response{Offline: true, Err: ErrNoCachedData}
	}

	res, err := g.transport.RoundTrip(ctx, req.Method, req.URL, req.Headers, req.Body)
	if err == nil && res.OK() {
		if cacheable {
			if cacheErr := g.store.PutCached(ctx, req.Options.CacheKey, res.Body, req.Options.CacheTTL); cacheErr != nil {
				// Write-through is best effort; the response is still good.
				g.logger.Warn("gateway: cache write-through failed",
					"key", req.Options.CacheKey, "error", cacheErr)
			}
		}
		return Response{Data: res.Body, Status: res.Status, Success: true}
	}

	// Network failed; a stale-but-present cache entry beats an error.
	if cacheable {
		data, ok, cacheErr := g.store.GetCached(ctx, req.Options.CacheKey)
		if cacheErr != nil {
			g.logger.Warn("gateway: cache fallback failed",
				"key", req.Options.CacheKey, "error", cacheErr)
		} else if ok {
			return Response{Data: data, Success: true, FromCache: true}
		}
	}

	if err != nil {
		return Response{Err: NewTransportError(req.URL, err)}
	}
	return Response{Status: res.Status, Err: NewRemoteRejection(req.URL, res.Status)}
}

func (g *Gateway) mutate(ctx context.Context, req Request) Response {
	if !g.net.Online() {
		if !req.Options.QueueOffline {
			return Response{Offline: true, Err: NewTransportError(req.URL, nil)}
		}
		// Offline from the start: skip the network attempt entirely.
		return g.enqueue(ctx, req)
	}

	res, err := g.transport.RoundTrip(ctx, req.Method, req.URL, req.Headers, req.Body)
	if err == nil {
		if res.OK() {
			if req.Options.CacheKey != "" {
				if cacheErr := g.store.PutCached(ctx, req.Options.CacheKey, res.Body, req.Options.CacheTTL); cacheErr != nil {
					g.logger.Warn("gateway: cache write-through failed",
						"key", req.Options.CacheKey, "error", cacheErr)
				}
			}
			return Response{Data: res.Body, Status: res.Status, Success: true}
		}
		// The server was reachable and said no. Queuing a rejected request
		// would just replay the rejection, so surface it.
		return Response{Status: res.Status, Err: NewRemoteRejection(req.URL, res.Status)}
	}

	if !req.Options.QueueOffline {
		return Response{Err: NewTransportError(req.URL, err)}
	}
	return g.enqueue(ctx, req)
}

// enqueue stores the mutation in the outbox and fabricates the optimistic
// response. Storage failures surface synchronously - this is the one path
// where the caller must know the write is lost.
func (g *Gateway) enqueue(ctx context.Context, req Request) Response {
	maxRetries := req.Options.MaxRetries
	if maxRetries <= 0 {
		maxRetries = g.maxRetries
	}

	id, err := g.store.Enqueue(ctx, store.PendingOperationInput{
		URL:        req.URL,
		Method:     req.Method,
		Headers:    req.Headers,
		Body:       req.Body,
		Payload:    req.Payload,
		OpType:     req.Options.OpType,
		MaxRetries: maxRetries,
	})
	if err != nil {
		return Response{Offline: true, Err: NewStorageError("enqueue", err)}
	}

	g.logger.Info("gateway: mutation queued",
		"op_id", id, "method", req.Method, "url", req.URL, "op_type", req.Options.OpType)

	data := req.Payload
	if data == nil {
		data = req.Body
	}
	return Response{
		Data:        data,
		Success:     true,
		Offline:     true,
		Queued:      true,
		OperationID: id,
	}
}

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransportResult is the outcome of one network call. The engine only looks
// at the status class; the body is opaque payload handed back to callers.
type TransportResult struct {
	Status int
	Body   []byte
}

// OK reports whether the response is a success (2xx).
func (r *TransportResult) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Transport is the external collaborator that actually reaches the remote
// service. A returned error means the attempt failed at the transport level
// (timeout, DNS, connection refused); a non-2xx TransportResult means the
// server was reachable and rejected the request. The engine treats both as
// "attempt failed" and classifies them through the RetryPolicy.
//
// Implementations own their call timeout.
type Transport interface {
	RoundTrip(ctx context.Context, method, url string, headers map[string]string, body []byte) (*TransportResult, error)
}

// maxResponseBody caps how much of a response the engine will buffer.
const maxResponseBody = 8 << 20 // 8 MiB

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport whose calls time out after timeout.
// A non-positive timeout disables the client-level deadline; callers can
// still bound individual calls through ctx.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	client := &http.Client{}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &HTTPTransport{client: client}
}

// RoundTrip issues the HTTP call and buffers the response body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, method, url string, headers map[string]string, body []byte) (*TransportResult, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &TransportResult{Status: resp.StatusCode, Body: data}, nil
}

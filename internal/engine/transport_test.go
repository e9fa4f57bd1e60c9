package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte(`{"name":"pump"}`), body)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(5 * time.Second)
	res, err := transport.RoundTrip(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"Content-Type": "application/json"}, []byte(`{"name":"pump"}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, []byte(`{"id":7}`), res.Body)
	assert.True(t, res.OK())
}

func TestHTTPTransport_RejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	transport := NewHTTPTransport(5 * time.Second)
	res, err := transport.RoundTrip(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`))

	require.NoError(t, err, "a reachable server is not a transport failure")
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	assert.False(t, res.OK())
}

func TestHTTPTransport_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	transport := NewHTTPTransport(time.Second)
	_, err := transport.RoundTrip(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
}

func TestTransportResult_OK(t *testing.T) {
	assert.True(t, (&TransportResult{Status: 200}).OK())
	assert.True(t, (&TransportResult{Status: 204}).OK())
	assert.False(t, (&TransportResult{Status: 301}).OK())
	assert.False(t, (&TransportResult{Status: 500}).OK())

	var nilResult *TransportResult
	assert.False(t, nilResult.OK())
}

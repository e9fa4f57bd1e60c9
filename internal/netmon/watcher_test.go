package netmon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollWatcher_FeedsMonitor(t *testing.T) {
	var reachable atomic.Bool
	probe := func(ctx context.Context) bool { return reachable.Load() }

	m := New(true)
	w := NewPollWatcher(5*time.Millisecond, probe)
	w.Start(m)
	defer w.Stop()

	// The immediate startup probe reports unreachable.
	require.Eventually(t, func() bool { return !m.Online() },
		time.Second, time.Millisecond, "startup probe must flip the monitor offline")

	reachable.Store(true)
	require.Eventually(t, func() bool { return m.Online() },
		time.Second, time.Millisecond, "a later probe must flip it back")
}

func TestPollWatcher_StopHaltsProbing(t *testing.T) {
	var probes atomic.Int64
	probe := func(ctx context.Context) bool {
		probes.Add(1)
		return true
	}

	w := NewPollWatcher(5*time.Millisecond, probe)
	w.Start(New(false))

	require.Eventually(t, func() bool { return probes.Load() >= 2 },
		time.Second, time.Millisecond)

	w.Stop()
	w.Stop() // second Stop is a no-op

	settled := probes.Load()
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, settled, probes.Load(), "no probes after Stop")
}

func TestNewPollWatcher_NonPositiveIntervalDefaults(t *testing.T) {
	w := NewPollWatcher(0, func(ctx context.Context) bool { return true })
	require.Equal(t, DefaultPollInterval, w.interval)

	m := New(false)
	require.NotPanics(t, func() { w.Start(m) })
	defer w.Stop()

	require.Eventually(t, func() bool { return m.Online() },
		time.Second, time.Millisecond, "immediate startup probe still runs")
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	probe := HTTPProber(srv.URL, time.Second)
	assert.True(t, probe(context.Background()), "any response proves connectivity, even a 500")

	srv.Close()
	assert.False(t, probe(context.Background()))
}

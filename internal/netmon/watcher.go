package netmon

import (
	"context"
	"net/http"
	"time"
)

// Prober reports whether the remote side is reachable right now.
type Prober func(ctx context.Context) bool

// PollWatcher is a platform connectivity signal built on periodic probing.
// It probes on a fixed interval and feeds the result into a Monitor. The
// engine only needs the boolean - no bandwidth or latency inspection.
type PollWatcher struct {
	interval time.Duration
	probe    Prober
	cancel   context.CancelFunc
	done     chan struct{}
}

// HTTPProber probes by issuing a HEAD request to url with the given timeout.
// Any response at all counts as reachable - a 500 still proves connectivity.
func HTTPProber(url string, timeout time.Duration) Prober {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// DefaultPollInterval is the probe period used when NewPollWatcher gets a
// non-positive interval.
const DefaultPollInterval = 15 * time.Second

// NewPollWatcher creates a watcher probing with probe every interval.
// A non-positive interval falls back to DefaultPollInterval.
func NewPollWatcher(interval time.Duration, probe Prober) *PollWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWatcher{interval: interval, probe: probe}
}

// Start begins probing in a background goroutine, feeding results into m via
// SetOnline. An immediate probe runs before the first tick so the monitor
// reflects reality at startup rather than one interval later.
func (w *PollWatcher) Start(m *Monitor) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		m.SetOnline(w.probe(ctx))

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetOnline(w.probe(ctx))
			}
		}
	}()
}

// Stop halts probing and waits for the background goroutine to exit.
// Safe to call before Start or more than once.
func (w *PollWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldsync/fieldsync/internal/store"
)

// DefaultSweepInterval is how often the sweeper purges expired cache
// entries when no interval is configured.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired cache entries. It runs on a fixed
// timer independent of sync activity; the only lifecycle concern is
// stopping it at process shutdown.
type Sweeper struct {
	store    *store.Store
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper over the store. A non-positive interval
// falls back to DefaultSweepInterval.
func NewSweeper(s *store.Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    s,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background sweep loop. Calling Start on a running
// sweeper is a no-op.
func (s *Sweeper) Start() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.SweepNow(context.Background()); err != nil {
					s.logger.Error("sweeper: purge failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit. Safe to call before
// Start or more than once.
func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}

// SweepNow purges expired entries immediately and returns how many were
// removed. Callable manually, independent of the timer.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("sweeper: purged expired cache entries", "count", n)
	}
	return n, nil
}

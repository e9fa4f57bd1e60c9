package engine

import (
	"sync"
	"time"
)

// Clock is the engine's time source. The production implementation reads the
// system clock; tests pin it to drive TTL and retry boundaries exactly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the system wall clock, in UTC.
func SystemClock() Clock { return systemClock{} }

// ManualClock is a settable clock for tests.
//
// Unlike the system clock, ManualClock only moves when told to. This lets
// the same scenario run repeatedly with identical timestamps.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock creates a clock pinned at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start.UTC()}
}

// Now returns the pinned time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set pins the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}

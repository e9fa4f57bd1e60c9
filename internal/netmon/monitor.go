// Package netmon tracks connectivity transitions and lets other components
// subscribe to them.
//
// The monitor itself never probes the network - it is fed by a platform
// signal (see Watcher) or directly by the embedding application via
// SetOnline. Subscribers are notified in registration order, and the
// offline-to-online transition additionally fires the registered reconnect
// hook so the engine can schedule a sync attempt.
package netmon

import "sync"

// Callback receives the current connectivity state. It is invoked once
// immediately on Subscribe and again on every transition.
type Callback func(online bool)

// subscriber pairs a callback with its token so unsubscription works even
// though funcs are not comparable.
type subscriber struct {
	id int64
	fn Callback
}

// Monitor holds the process-wide connectivity state and its subscribers.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks and the
// reconnect hook run synchronously on the goroutine that called SetOnline,
// outside the monitor's lock, so they may call back into the monitor.
type Monitor struct {
	mu          sync.Mutex
	online      bool
	nextID      int64
	subs        []subscriber
	onReconnect func()
}

// New creates a Monitor with the given initial state. No notifications are
// emitted for the initial state; subscribers learn it on Subscribe.
func New(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback and returns a token for Unsubscribe.
// The callback is invoked immediately with the current state, then again on
// every transition, in registration order.
func (m *Monitor) Subscribe(fn Callback) int64 {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	online := m.online
	m.mu.Unlock()

	fn(online)
	return id
}

// Unsubscribe removes a previously registered callback. No-op if the token
// is absent or already removed.
func (m *Monitor) Unsubscribe(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subs {
		if sub.id == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

// OnReconnect registers the hook fired after subscribers are notified of an
// offline-to-online transition. The engine points this at its sync trigger.
// Only one hook is held; a later call replaces the earlier one.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = fn
}

// SetOnline feeds a connectivity signal into the monitor. Setting the state
// it already holds is a no-op: subscribers only see transitions.
//
// On a transition, subscribers are notified synchronously in registration
// order; on an offline-to-online transition the reconnect hook then runs,
// also synchronously. Callers that must not block on the triggered sync
// should call SetOnline from their own goroutine.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	reconnect := m.onReconnect
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(online)
	}

	if online && reconnect != nil {
		reconnect()
	}
}

package engine

import "sync"

// SyncListener receives the batch result of a completed sync cycle.
type SyncListener func(SyncResult)

// notifier is the completion-notification registry. Listeners are invoked in
// registration order, synchronously, at the end of a sync cycle.
//
// Thread-safety mirrors netmon.Monitor: registration is guarded by a mutex,
// and listeners run outside the lock so they may call back into the engine.
type notifier struct {
	mu     sync.Mutex
	nextID int64
	subs   []syncSub
}

type syncSub struct {
	id int64
	fn SyncListener
}

func (n *notifier) add(fn SyncListener) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.subs = append(n.subs, syncSub{id: n.nextID, fn: fn})
	return n.nextID
}

func (n *notifier) remove(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subs {
		if sub.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

func (n *notifier) publish(result SyncResult) {
	n.mu.Lock()
	subs := make([]syncSub, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.fn(result)
	}
}

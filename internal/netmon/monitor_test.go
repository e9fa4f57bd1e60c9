package netmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_InvokedImmediatelyWithCurrentState(t *testing.T) {
	m := New(true)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	require.Len(t, got, 1, "callback should fire immediately on subscribe")
	assert.True(t, got[0])
}

func TestSetOnline_NotifiesOnTransition(t *testing.T) {
	m := New(true)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestSetOnline_SameStateIsNoOp(t *testing.T) {
	m := New(true)

	calls := 0
	m.Subscribe(func(bool) { calls++ })

	m.SetOnline(true)
	m.SetOnline(true)

	assert.Equal(t, 1, calls, "only the immediate invocation, no transition notifications")
	assert.True(t, m.Online())
}

func TestUnsubscribe_StopsNotifications(t *testing.T) {
	m := New(true)

	calls := 0
	id := m.Subscribe(func(bool) { calls++ })
	m.Unsubscribe(id)

	m.SetOnline(false)

	assert.Equal(t, 1, calls, "unsubscribed callback must not fire on transitions")
}

func TestUnsubscribe_AbsentIDIsNoOp(t *testing.T) {
	m := New(true)

	assert.NotPanics(t, func() {
		m.Unsubscribe(42)
		m.Unsubscribe(42)
	})
}

func TestSubscribers_NotifiedInRegistrationOrder(t *testing.T) {
	m := New(false)

	var order []string
	m.Subscribe(func(online bool) {
		if online {
			order = append(order, "first")
		}
	})
	m.Subscribe(func(online bool) {
		if online {
			order = append(order, "second")
		}
	})

	m.SetOnline(true)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOnReconnect_FiresOnlyOnOfflineToOnline(t *testing.T) {
	m := New(true)

	triggers := 0
	m.OnReconnect(func() { triggers++ })

	m.SetOnline(false)
	assert.Equal(t, 0, triggers, "going offline must not trigger")

	m.SetOnline(true)
	assert.Equal(t, 1, triggers, "offline-to-online must trigger once")

	m.SetOnline(true)
	assert.Equal(t, 1, triggers, "repeated online signal must not trigger")

	m.SetOnline(false)
	m.SetOnline(true)
	assert.Equal(t, 2, triggers)
}

func TestOnReconnect_RunsAfterSubscribers(t *testing.T) {
	m := New(false)

	var order []string
	m.Subscribe(func(online bool) {
		if online {
			order = append(order, "subscriber")
		}
	})
	m.OnReconnect(func() { order = append(order, "reconnect") })

	m.SetOnline(true)

	assert.Equal(t, []string{"subscriber", "reconnect"}, order)
}

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/types"
)

func fakeEvent() types.UnifiedEvent {
	return types.SystemEvent{
		EventBase: types.EventBase{EventID: "e1", Source: types.AgentClaude},
		Severity:  types.SeverityInfo,
		Message:   "hi",
	}
}

func TestBusRegisterRejectsBeyondMaxClients(t *testing.T) {
	b := NewBus(1, time.Second)

	_, ok := b.Register()
	require.True(t, ok)

	_, ok = b.Register()
	assert.False(t, ok, "a second viewer beyond max_clients must be rejected")
}

func TestBusBroadcastDropsOnFullQueue(t *testing.T) {
	b := NewBus(5, time.Second)
	v, ok := b.Register()
	require.True(t, ok)

	for i := 0; i < defaultQueueSize+5; i++ {
		b.Push(fakeEvent())
	}
	assert.LessOrEqual(t, len(v), defaultQueueSize)
}

func TestBusUnregisterFiresGracePeriodCallback(t *testing.T) {
	b := NewBus(5, 20*time.Millisecond)
	fired := make(chan struct{}, 1)
	b.OnAllDisconnected(func() { fired <- struct{}{} })

	v, ok := b.Register()
	require.True(t, ok)
	b.Unregister(v)

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("on-all-disconnected callback did not fire after grace period")
	}
}

func TestBusUnregisterGraceCancelledByReconnect(t *testing.T) {
	b := NewBus(5, 50*time.Millisecond)
	fired := make(chan struct{}, 1)
	b.OnAllDisconnected(func() { fired <- struct{}{} })

	v, ok := b.Register()
	require.True(t, ok)
	b.Unregister(v)

	_, ok = b.Register()
	require.True(t, ok)

	select {
	case <-fired:
		t.Fatal("callback must not fire once a new viewer connected within the grace period")
	case <-time.After(100 * time.Millisecond):
	}
}

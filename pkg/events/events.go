package events

import (
	"sync"
	"time"

	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/metrics"
	"github.com/cuemby/agentbroker/pkg/types"
)

const defaultQueueSize = 64

// Delivery is one broadcast payload: a normalised event plus the
// dashboard-rendered HTML fragment for it. The renderer is a thin,
// out-of-core concern (§1 "dashboard's HTML/CSS/JS" is an explicit
// external collaborator); RenderHTML below is the minimal stand-in.
type Delivery struct {
	Event types.UnifiedEvent `json:"event"`
	HTML  string             `json:"html,omitempty"`
}

// Viewer is one SSE client's bounded inbox (the §3 "Viewer Queue").
type Viewer chan Delivery

// Bus is the broadcaster half of C7: a lock-guarded set of viewer
// queues plus grace-period bookkeeping for the "all clients
// disconnected" advisory callback. The zero value is not usable; build
// one with NewBus.
type Bus struct {
	mu      sync.Mutex
	viewers map[Viewer]bool

	maxClients int

	gracePeriod       time.Duration
	onAllDisconnected func()
	graceTimer        *time.Timer
}

// NewBus builds a Bus accepting up to maxClients concurrent viewers,
// waiting gracePeriod after the last viewer disconnects before invoking
// the on-all-disconnected callback (§4.7 "Grace period").
func NewBus(maxClients int, gracePeriod time.Duration) *Bus {
	return &Bus{
		viewers:     make(map[Viewer]bool),
		maxClients:  maxClients,
		gracePeriod: gracePeriod,
	}
}

// OnAllDisconnected registers the advisory callback invoked when the
// grace period elapses with zero connected viewers. It does not
// terminate the process (§4.7); callers decide what, if anything, to
// do with it.
func (b *Bus) OnAllDisconnected(cb func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onAllDisconnected = cb
}

// Register admits a new viewer, returning ok=false (and a nil channel)
// if the bus is already at maxClients — the caller replies 503.
func (b *Bus) Register() (Viewer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxClients > 0 && len(b.viewers) >= b.maxClients {
		return nil, false
	}

	v := make(Viewer, defaultQueueSize)
	b.viewers[v] = true
	if b.graceTimer != nil {
		b.graceTimer.Stop()
		b.graceTimer = nil
	}
	metrics.SSEClients.Set(float64(len(b.viewers)))
	return v, true
}

// Unregister removes v from the broadcast set and closes it. If this
// was the last viewer, the grace-period timer starts.
func (b *Bus) Unregister(v Viewer) {
	b.mu.Lock()
	_, existed := b.viewers[v]
	delete(b.viewers, v)
	metrics.SSEClients.Set(float64(len(b.viewers)))
	empty := existed && len(b.viewers) == 0
	cb := b.onAllDisconnected
	grace := b.gracePeriod
	if empty && cb != nil {
		b.graceTimer = time.AfterFunc(grace, func() {
			b.mu.Lock()
			stillEmpty := len(b.viewers) == 0
			b.mu.Unlock()
			if stillEmpty {
				cb()
			}
		})
	}
	b.mu.Unlock()

	if existed {
		close(v)
	}
}

// ClientCount returns the number of currently connected viewers.
func (b *Bus) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

// Broadcast delivers d to every registered viewer via a non-blocking
// enqueue; a viewer whose queue is already full drops this one event
// (§3 "Viewer Queue": deliberate, viewers are best-effort).
func (b *Bus) Broadcast(d Delivery) {
	b.mu.Lock()
	snapshot := make([]Viewer, 0, len(b.viewers))
	for v := range b.viewers {
		snapshot = append(snapshot, v)
	}
	b.mu.Unlock()

	metrics.EventsBroadcastTotal.WithLabelValues(string(d.Event.Category())).Inc()

	logger := log.WithComponent("eventbus")
	for _, v := range snapshot {
		select {
		case v <- d:
		default:
			metrics.EventsDroppedTotal.Inc()
			logger.Debug().Str("event_id", d.Event.Base().EventID).Msg("viewer queue full, dropping event")
		}
	}
}

// Push is a convenience wrapper that renders ev with RenderHTML before
// broadcasting it.
func (b *Bus) Push(ev types.UnifiedEvent) {
	b.Broadcast(Delivery{Event: ev, HTML: RenderHTML(ev)})
}

package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/types"
)

// RequestInfo is the public snapshot of one registered request.
type RequestInfo struct {
	RequestID string
	CLIType   types.AgentKind
	CreatedAt time.Time
	TaskNote  string
	Done      bool
}

type entry struct {
	info   RequestInfo
	cancel context.CancelFunc
}

// Registry is the table of in-flight requests. The zero value is not
// usable; build one with New.
type Registry struct {
	mu       sync.Mutex
	requests map[string]*entry
	onEmpty  map[int]func()
	nextCB   int
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		requests: make(map[string]*entry),
		onEmpty:  make(map[int]func()),
	}
}

// NewRequestID generates a request identifier (uuid.v4, per
// RequestRegistry.generate_request_id).
func NewRequestID() string {
	return uuid.NewString()
}

// Register adds a new in-flight request. cancel is invoked by Cancel or
// CancelAll; it is the caller's context.CancelFunc for this request's
// execution. Returns an error if requestID is already registered.
func (r *Registry) Register(requestID string, kind types.AgentKind, cancel context.CancelFunc, taskNote string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[requestID]; exists {
		return fmt.Errorf("registry: request %s already registered", requestID)
	}
	r.requests[requestID] = &entry{
		info: RequestInfo{
			RequestID: requestID,
			CLIType:   kind,
			CreatedAt: time.Now(),
			TaskNote:  taskNote,
		},
		cancel: cancel,
	}
	log.WithRequestID(requestID).Debug().Str("agent", string(kind)).Msg("request registered")
	return nil
}

// MarkDone flags requestID as finished without removing it from the
// table; ActiveCount and CancelAll treat it as inactive from this point.
// Callers normally call MarkDone immediately before Unregister.
func (r *Registry) MarkDone(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.requests[requestID]; ok {
		e.info.Done = true
	}
}

// Unregister removes requestID from the table, firing every registered
// on-empty callback if the table becomes empty as a result. Reports
// whether requestID was present.
func (r *Registry) Unregister(requestID string) bool {
	r.mu.Lock()
	_, existed := r.requests[requestID]
	if existed {
		delete(r.requests, requestID)
	}
	empty := existed && len(r.requests) == 0
	var callbacks []func()
	if empty {
		callbacks = make([]func(), 0, len(r.onEmpty))
		for _, cb := range r.onEmpty {
			callbacks = append(callbacks, cb)
		}
	}
	r.mu.Unlock()

	if existed {
		log.WithRequestID(requestID).Debug().Msg("request unregistered")
	}
	for _, cb := range callbacks {
		cb()
	}
	return existed
}

// Get returns the snapshot for requestID, if registered.
func (r *Registry) Get(requestID string) (RequestInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.requests[requestID]
	if !ok {
		return RequestInfo{}, false
	}
	return e.info, true
}

// Cancel invokes requestID's cancel func if it is registered and not yet
// done. Reports whether a cancellation was actually issued.
func (r *Registry) Cancel(requestID string) bool {
	r.mu.Lock()
	e, ok := r.requests[requestID]
	if !ok || e.info.Done {
		r.mu.Unlock()
		return false
	}
	cancel := e.cancel
	r.mu.Unlock()

	cancel()
	log.WithRequestID(requestID).Info().Msg("request cancelled")
	return true
}

// CancelAll cancels every active (not-done) request and returns how many
// cancellations were issued.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	var toCancel []string
	for id, e := range r.requests {
		if !e.info.Done {
			toCancel = append(toCancel, id)
		}
	}
	r.mu.Unlock()

	count := 0
	for _, id := range toCancel {
		if r.Cancel(id) {
			count++
		}
	}
	if count > 0 {
		log.Logger.Info().Int("count", count).Msg("cancelled all active requests")
	}
	return count
}

// HasActive reports whether any registered request is not yet done.
func (r *Registry) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.requests {
		if !e.info.Done {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of registered, not-yet-done requests.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.requests {
		if !e.info.Done {
			count++
		}
	}
	return count
}

// TotalCount returns every registered request, done or not.
func (r *Registry) TotalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// ListActive returns every not-yet-done request, oldest first.
func (r *Registry) ListActive() []RequestInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RequestInfo
	for _, e := range r.requests {
		if !e.info.Done {
			out = append(out, e.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CleanupDone unregisters every request already marked Done and returns
// how many were removed.
func (r *Registry) CleanupDone() int {
	r.mu.Lock()
	var doneIDs []string
	for id, e := range r.requests {
		if e.info.Done {
			doneIDs = append(doneIDs, id)
		}
	}
	r.mu.Unlock()

	for _, id := range doneIDs {
		r.Unregister(id)
	}
	return len(doneIDs)
}

// AddOnEmptyCallback registers cb to run whenever Unregister empties the
// table, and returns a token for RemoveOnEmptyCallback.
func (r *Registry) AddOnEmptyCallback(cb func()) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextCB
	r.nextCB++
	r.onEmpty[id] = cb
	return id
}

// RemoveOnEmptyCallback unregisters the callback identified by token.
func (r *Registry) RemoveOnEmptyCallback(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.onEmpty, token)
}

// Len returns the total number of registered requests (done or not).
func (r *Registry) Len() int {
	return r.TotalCount()
}

// Contains reports whether requestID is currently registered.
func (r *Registry) Contains(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.requests[requestID]
	return ok
}

package comparison

import (
	"sync"

	"github.com/ChamsBouzaiene/modelarena/internal/logger"
)

// observerBuffer is the per-observer channel capacity. A full buffer means
// the observer is too slow and further events are dropped for it.
const observerBuffer = 64

// Relay is an in-process publish/subscribe hub keyed by session id.
//
// Subscription carries no history: an observer that joins after streaming
// began receives subsequent events only. When the last observer of a
// session unsubscribes the relay drops its bookkeeping, but the underlying
// fan-out keeps running headless; persistence never depends on observers.
type Relay struct {
	mu       sync.RWMutex
	sessions map[string]map[string]chan Event
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{sessions: make(map[string]map[string]chan Event)}
}

// Subscribe attaches an observer to a session's event stream and returns
// the channel it will receive on. Re-subscribing with the same observer id
// replaces the previous channel.
func (r *Relay) Subscribe(sessionID, observerID string) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers, ok := r.sessions[sessionID]
	if !ok {
		observers = make(map[string]chan Event)
		r.sessions[sessionID] = observers
	}
	if prev, ok := observers[observerID]; ok {
		close(prev)
	}

	ch := make(chan Event, observerBuffer)
	observers[observerID] = ch
	return ch
}

// Unsubscribe detaches an observer. Its channel is closed; other observers
// of the same session are unaffected.
func (r *Relay) Unsubscribe(sessionID, observerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	ch, ok := observers[observerID]
	if !ok {
		return
	}
	close(ch)
	delete(observers, observerID)
	if len(observers) == 0 {
		delete(r.sessions, sessionID)
	}
}

// Publish delivers an event to every current subscriber of its session.
// Delivery is non-blocking: a slow observer drops the event rather than
// delaying siblings. With no subscribers this is a cheap no-op.
func (r *Relay) Publish(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for observerID, ch := range r.sessions[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			logger.Debug("observer buffer full, dropping event",
				"session_id", ev.SessionID, "observer_id", observerID, "type", ev.Type)
		}
	}
}

// Package events fans session-change notifications out to the WebSocket
// connections of the affected user.
package events

import (
	"context"
	"sync"
)

// Kind names a server-side session change.
type Kind string

const (
	// KindSignedOut ends one session (SessionID set) or all of a user's
	// sessions (SessionID empty).
	KindSignedOut Kind = "SIGNED_OUT"
	// KindUserUpdated tells clients to refetch the user and profile.
	KindUserUpdated Kind = "USER_UPDATED"
)

// Event is the message delivered on the events stream.
type Event struct {
	Kind      Kind   `json:"event"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// AppliesTo reports whether a connection authenticated with sessionID
// should receive the event.
func (e Event) AppliesTo(sessionID string) bool {
	if e.Kind == KindSignedOut && e.SessionID != "" {
		return e.SessionID == sessionID
	}
	return true
}

// Publisher delivers events to every instance serving the user.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker is a Publisher that local connections can subscribe to.
type Broker interface {
	Publisher
	// Subscribe returns a channel of events for userID and a function that
	// releases it. The channel is closed after cancel is called.
	Subscribe(userID string) (<-chan Event, func())
}

const subscriberBuffer = 16

// Hub is the in-process Broker.
type Hub struct {
	mu        sync.Mutex
	next      int
	subs      map[string]map[int]chan Event
	observers []func(Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

// Publish delivers ev to local subscribers of ev.UserID. Slow subscribers
// drop events rather than block the publisher.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.Lock()
	for _, ch := range h.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
	observers := h.observers
	h.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
	return nil
}

// Observe registers fn to see every event published through the hub,
// whichever user it concerns. fn must not block.
func (h *Hub) Observe(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers[:len(h.observers):len(h.observers)], fn)
}

// Subscribe implements Broker.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Event)
	}
	h.subs[userID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of local subscribers for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

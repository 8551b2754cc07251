package push

import (
	"sync"
	"time"
)

const (
	EventSessionUpdate = "session_update"
	EventMessage       = "message"
	EventQueueUpdate   = "queue_update"
)

type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Payload   any       `json:"payload,omitempty"`
	Time      time.Time `json:"time"`
}

type Subscriber chan Event

// Hub fans session events out to subscribed clients. Delivery is best-effort
// and at-most-once: a slow subscriber drops events rather than blocking the
// publisher, and state stays queryable regardless.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
}

func NewHub() *Hub {
	return &Hub{subs: map[string][]Subscriber{}}
}

func (h *Hub) Subscribe(sessionID string) Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(Subscriber, 16)
	h.subs[sessionID] = append(h.subs[sessionID], ch)
	return ch
}

func (h *Hub) Unsubscribe(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sessionID]
	for i, s := range subs {
		if s == sub {
			h.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			close(s)
			break
		}
	}
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

func (h *Hub) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	// The lock is held across the sends: Unsubscribe closes channels under
	// the write lock, so sending outside it risks a send on a closed channel.
	// Sends cannot block, so holding it here is safe.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[event.SessionID] {
		select {
		case sub <- event:
		default:
		}
	}
}

func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

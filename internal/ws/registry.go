package ws

import (
	"sync"
)

// Registry maps chat ids to the set of live connections subscribed to them.
// It is constructed once at startup and injected into every handler; all
// access is serialized by a single mutex, which is enough at this scale.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint]map[*Client]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uint]map[*Client]struct{}),
	}
}

// Register adds a connection to the set for chatID, creating the set if absent
func (r *Registry) Register(chatID uint, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[chatID]
	if !ok {
		set = make(map[*Client]struct{})
		r.sessions[chatID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection; the last removal drops the chat entry
// entirely so the map never accumulates empty sets.
func (r *Registry) Unregister(chatID uint, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[chatID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.sessions, chatID)
	}
}

// Broadcast delivers payload to every connection currently registered for
// chatID. Fan-out is best effort: a connection whose send buffer is not
// writable is evicted and closed, and delivery continues to the rest.
func (r *Registry) Broadcast(chatID uint, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[chatID]
	if !ok {
		return
	}

	for c := range set {
		if !c.trySend(payload) {
			delete(set, c)
			c.closeSend()
		}
	}
	if len(set) == 0 {
		delete(r.sessions, chatID)
	}
}

// SessionCount reports how many chats currently have live connections
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ConnectionCount reports how many connections are registered for a chat
func (r *Registry) ConnectionCount(chatID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[chatID])
}

package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub owns transient room membership: the mapping from session id to the set
// of connected clients, plus the global set used for session-created
// announcements. Membership is never authoritative data; it is lost on
// restart and clients must re-join after reconnecting.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

// NewHub creates a ready-to-use Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection to the global set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a connection from the global set and from every room it
// joined, then releases its send channel. Called when the connection closes,
// so a dropped client is automatically unsubscribed everywhere.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for sessionID := range c.rooms {
		h.removeFromRoom(c, sessionID)
	}
	close(c.send)
}

// Join subscribes a connection to a session's room. Authorization is not
// checked here; the REST join that precedes this call already enforced it.
func (h *Hub) Join(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]struct{})
	}
	h.rooms[sessionID][c] = struct{}{}
	c.rooms[sessionID] = struct{}{}
}

// Leave unsubscribes a connection from a room. Empty rooms are pruned.
func (h *Hub) Leave(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, sessionID)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(c *Client, sessionID string) {
	delete(c.rooms, sessionID)
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// RoomSize returns the number of connections subscribed to a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// BroadcastToRoom delivers an event to every connection in the session's
// room, sender included.
func (h *Hub) BroadcastToRoom(sessionID string, evt Event) {
	h.broadcastRoom(sessionID, nil, evt)
}

// BroadcastToRoomExcept delivers an event to the session's room, skipping one
// connection. Used for scroll mirroring, where the sender already holds the
// authoritative local state.
func (h *Hub) BroadcastToRoomExcept(sessionID string, except *Client, evt Event) {
	h.broadcastRoom(sessionID, except, evt)
}

func (h *Hub) broadcastRoom(sessionID string, except *Client, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal room event", slog.String("kind", evt.Type), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[sessionID] {
		if c == except {
			continue
		}
		c.trySend(data)
	}
}

// BroadcastAll delivers an event to every connected client regardless of room
// membership.
func (h *Hub) BroadcastAll(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal global event", slog.String("kind", evt.Type), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.trySend(data)
	}
}

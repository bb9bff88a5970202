package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 16
)

// Client is one websocket connection attached to the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	// rooms the client has joined; guarded by hub.mu.
	rooms map[string]struct{}
}

// ServeConn registers a connection with the hub and runs its read and write
// pumps. The write pump runs on its own goroutine; the read pump runs on the
// caller's and returns when the connection drops.
func ServeConn(hub *Hub, conn *websocket.Conn, userID string) {
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
	hub.Register(c)

	go c.writePump()
	c.readPump()
}

// trySend queues data for the write pump without blocking. A full buffer
// means the client is too slow to keep up; the message is dropped for that
// socket only and the originating mutation is unaffected.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Debug("dropping event for slow client", slog.String("user_id", c.userID))
	}
}

// readPump consumes inbound events until the connection closes, then detaches
// the client from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", slog.String("user_id", c.userID), slog.Any("error", err))
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("malformed channel message", slog.String("user_id", c.userID), slog.Any("error", err))
			continue
		}
		if err := validateClientEvent(evt); err != nil {
			slog.Warn("rejected channel message", slog.String("user_id", c.userID), slog.Any("error", err))
			continue
		}

		c.dispatch(evt)
	}
}

// dispatch routes a validated client event.
func (c *Client) dispatch(evt Event) {
	switch evt.Type {
	case KindJoinSession:
		c.hub.Join(c, evt.SessionID)
	case KindLeaveSession:
		c.hub.Leave(c, evt.SessionID)
	case KindChangeSong:
		// Rebroadcast to the room. The authoritative path is the REST
		// mutation; the socket event exists so the admin client can fan out
		// without waiting for its own response round trip.
		c.hub.BroadcastToRoom(evt.SessionID, SongChanged(evt.SongID))
	case KindToggleScroll:
		c.hub.BroadcastToRoomExcept(evt.SessionID, c, ScrollStateChanged(*evt.ShouldScroll))
	}
}

// writePump writes queued events and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bandsync/backend/internal/middleware"
	"github.com/bandsync/backend/internal/realtime"
)

// WSHandler upgrades authenticated requests onto the realtime channel.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler for the given hub. Cross-origin upgrades
// are only accepted from the configured origins.
func NewWSHandler(hub *realtime.Hub, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Serve upgrades the connection and runs it against the hub until it drops.
// Auth happened in middleware; the socket carries the caller's user id so
// logs can attribute channel activity.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	realtime.ServeConn(h.hub, conn, claims.UserID)
}

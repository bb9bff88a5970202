package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// View is the screen a client should currently show.
type View int

const (
	// ViewNoSession is the waiting-for-a-session state shown to players.
	ViewNoSession View = iota
	// ViewSelection is the song-selection state shown to admins.
	ViewSelection
	// ViewWaiting means attached to a session that has no song yet.
	ViewWaiting
	// ViewLive means attached and displaying the current song.
	ViewLive
)

// Handlers receive server events after the controller has updated its local
// state. All callbacks are optional and run on the read-loop goroutine.
type Handlers struct {
	OnSessionCreated func(sessionID string)
	OnSongChanged    func(song Song)
	OnScrollState    func(shouldScroll bool)
	OnSessionEnded   func()
}

// event is the channel wire envelope.
type event struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId,omitempty"`
	SongID       string `json:"songId,omitempty"`
	ShouldScroll *bool  `json:"shouldScroll,omitempty"`
}

// SessionController reconciles a client's local view with server truth on
// connect, reconnect, and event delivery. After a disconnect it must be
// re-attached: the server buffers nothing, so state is re-fetched rather
// than replayed.
type SessionController struct {
	api      *Client
	isAdmin  bool
	handlers Handlers

	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	mu           sync.Mutex
	sessionID    string
	view         View
	shouldScroll bool
}

// NewSessionController creates a controller over the given API client.
// isAdmin selects where session-ended navigates: admins go back to song
// selection, players to the no-session view.
func NewSessionController(api *Client, isAdmin bool, handlers Handlers) *SessionController {
	return &SessionController{
		api:      api,
		isAdmin:  isAdmin,
		handlers: handlers,
		view:     ViewNoSession,
	}
}

// Connect dials the realtime channel and starts the event loop.
func (sc *SessionController) Connect(ctx context.Context) error {
	wsURL := strings.Replace(sc.api.BaseURL, "http", "ws", 1) + "/ws?token=" + sc.api.Token

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial realtime channel: %w", err)
	}

	sc.conn = conn
	sc.done = make(chan struct{})
	go sc.readLoop()
	return nil
}

// Attach joins the session over REST, subscribes to its room, and loads the
// referenced song if one is selected. On ErrNoSession the controller
// transitions to the no-session view instead of failing hard.
func (sc *SessionController) Attach(ctx context.Context, sessionID string) error {
	session, err := sc.api.JoinRehearsal(ctx, sessionID)
	if err != nil {
		sc.setView(ViewNoSession)
		return err
	}

	if err := sc.emit(event{Type: "join-session", SessionID: session.ID}); err != nil {
		return err
	}

	sc.mu.Lock()
	sc.sessionID = session.ID
	sc.mu.Unlock()

	if session.CurrentSongID == nil {
		sc.setView(ViewWaiting)
		return nil
	}

	song, err := sc.api.Song(ctx, *session.CurrentSongID)
	if err != nil {
		return err
	}
	sc.setView(ViewLive)
	if sc.handlers.OnSongChanged != nil {
		sc.handlers.OnSongChanged(song)
	}
	return nil
}

// Detach leaves the current room. Mandatory before attaching elsewhere:
// a stale subscription would leak another session's events into this view.
func (sc *SessionController) Detach() error {
	sc.mu.Lock()
	sessionID := sc.sessionID
	sc.sessionID = ""
	sc.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	return sc.emit(event{Type: "leave-session", SessionID: sessionID})
}

// Close detaches and drops the realtime connection.
func (sc *SessionController) Close() error {
	sc.Detach()
	if sc.conn == nil {
		return nil
	}
	err := sc.conn.Close()
	<-sc.done
	return err
}

// ToggleScroll publishes the admin's auto-scroll state to the room. The
// server excludes the sender from the fan-out, so the local flag is set here
// and never echoed back.
func (sc *SessionController) ToggleScroll(shouldScroll bool) error {
	sc.mu.Lock()
	sc.shouldScroll = shouldScroll
	sessionID := sc.sessionID
	sc.mu.Unlock()

	if sessionID == "" {
		return fmt.Errorf("not attached to a session")
	}
	return sc.emit(event{Type: "toggle-scroll", SessionID: sessionID, ShouldScroll: &shouldScroll})
}

// View returns the current screen state.
func (sc *SessionController) View() View {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.view
}

// ShouldScroll returns the mirrored auto-scroll flag.
func (sc *SessionController) ShouldScroll() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shouldScroll
}

// SessionID returns the attached session id, empty when detached.
func (sc *SessionController) SessionID() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sessionID
}

func (sc *SessionController) setView(v View) {
	sc.mu.Lock()
	sc.view = v
	sc.mu.Unlock()
}

func (sc *SessionController) emit(evt event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteMessage(websocket.TextMessage, data)
}

func (sc *SessionController) readLoop() {
	defer close(sc.done)

	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}

		var evt event
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("malformed channel event", slog.Any("error", err))
			continue
		}
		sc.handle(evt)
	}
}

func (sc *SessionController) handle(evt event) {
	switch evt.Type {
	case "session-created":
		if sc.handlers.OnSessionCreated != nil {
			sc.handlers.OnSessionCreated(evt.SessionID)
		}

	case "song-changed":
		// Re-fetch content: the event carries only the id, and the catalog
		// is the source of truth for what to display.
		song, err := sc.api.Song(context.Background(), evt.SongID)
		if err != nil {
			slog.Warn("fetch changed song", slog.String("song_id", evt.SongID), slog.Any("error", err))
			return
		}
		sc.setView(ViewLive)
		if sc.handlers.OnSongChanged != nil {
			sc.handlers.OnSongChanged(song)
		}

	case "scroll-state-changed":
		if evt.ShouldScroll == nil {
			return
		}
		sc.mu.Lock()
		sc.shouldScroll = *evt.ShouldScroll
		sc.mu.Unlock()
		if sc.handlers.OnScrollState != nil {
			sc.handlers.OnScrollState(*evt.ShouldScroll)
		}

	case "session-ended":
		sc.mu.Lock()
		sc.sessionID = ""
		if sc.isAdmin {
			sc.view = ViewSelection
		} else {
			sc.view = ViewNoSession
		}
		sc.mu.Unlock()
		if sc.handlers.OnSessionEnded != nil {
			sc.handlers.OnSessionEnded()
		}

	default:
		slog.Debug("ignoring unknown channel event", slog.String("kind", evt.Type))
	}
}

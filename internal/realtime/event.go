// Package realtime implements the websocket broadcast channel: per-session
// rooms, a global connection set, and a closed set of typed events.
package realtime

import "fmt"

// Event kinds. Client-to-server kinds are validated in validateClientEvent;
// anything else arriving on a socket is rejected.
const (
	KindJoinSession        = "join-session"
	KindLeaveSession       = "leave-session"
	KindChangeSong         = "change-song"
	KindToggleScroll       = "toggle-scroll"
	KindSongChanged        = "song-changed"
	KindScrollStateChanged = "scroll-state-changed"
	KindSessionCreated     = "session-created"
	KindSessionEnded       = "session-ended"
)

// Event is the wire envelope for channel messages. The fields used depend on
// the kind; each kind has a fixed schema.
type Event struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId,omitempty"`
	SongID       string `json:"songId,omitempty"`
	ShouldScroll *bool  `json:"shouldScroll,omitempty"`
}

// SongChanged announces the session's new current song.
func SongChanged(songID string) Event {
	return Event{Type: KindSongChanged, SongID: songID}
}

// ScrollStateChanged mirrors the admin's auto-scroll toggle.
func ScrollStateChanged(shouldScroll bool) Event {
	return Event{Type: KindScrollStateChanged, ShouldScroll: &shouldScroll}
}

// SessionCreated announces a new session to every connected client. It is the
// one global event: no room exists yet for the session's eventual members.
func SessionCreated(sessionID string) Event {
	return Event{Type: KindSessionCreated, SessionID: sessionID}
}

// SessionEnded announces termination to the session's room.
func SessionEnded() Event {
	return Event{Type: KindSessionEnded}
}

// validateClientEvent checks that an inbound event is a known client kind
// carrying its full fixed schema.
func validateClientEvent(evt Event) error {
	switch evt.Type {
	case KindJoinSession, KindLeaveSession:
		if evt.SessionID == "" {
			return fmt.Errorf("%s: missing sessionId", evt.Type)
		}
	case KindChangeSong:
		if evt.SessionID == "" || evt.SongID == "" {
			return fmt.Errorf("%s: missing sessionId or songId", evt.Type)
		}
	case KindToggleScroll:
		if evt.SessionID == "" || evt.ShouldScroll == nil {
			return fmt.Errorf("%s: missing sessionId or shouldScroll", evt.Type)
		}
	default:
		return fmt.Errorf("unknown event kind %q", evt.Type)
	}
	return nil
}

// Package client is a headless BandSync client: a typed REST client plus a
// session controller that keeps a local view synchronized with server truth
// over the realtime channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors mirroring the server's domain taxonomy. A missing and an
// ended session are indistinguishable by design.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNoSession       = errors.New("no session")
	ErrNotFound        = errors.New("not found")
)

// Session is the server's view of a rehearsal session.
type Session struct {
	ID            string        `json:"id"`
	AdminID       string        `json:"adminId"`
	CurrentSongID *string       `json:"currentSongId"`
	Participants  []Participant `json:"participants"`
	IsActive      bool          `json:"isActive"`
	InviteCode    string        `json:"inviteCode,omitempty"`
}

// Participant is a member snapshot taken at join time.
type Participant struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Instrument string `json:"instrument,omitempty"`
}

// Song is a catalog entry with display content.
type Song struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Content struct {
		Lyrics string `json:"lyrics"`
		Chords string `json:"chords"`
	} `json:"content"`
}

// Client calls the BandSync REST API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a Client for the given server and token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    http.DefaultClient,
	}
}

// CreateRehearsal starts a new session, optionally with an initial song.
func (c *Client) CreateRehearsal(ctx context.Context, songID string) (Session, error) {
	body := map[string]string{}
	if songID != "" {
		body["currentSongId"] = songID
	}
	var session Session
	err := c.do(ctx, http.MethodPost, "/rehearsals", body, &session)
	return session, err
}

// JoinRehearsal joins the session by id.
func (c *Client) JoinRehearsal(ctx context.Context, sessionID string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/rehearsals/"+sessionID+"/join", nil, &session)
	return session, err
}

// JoinByCode joins the active session carrying the invite code.
func (c *Client) JoinByCode(ctx context.Context, code string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/rehearsals/join-by-code", map[string]string{"code": code}, &session)
	return session, err
}

// ActiveRehearsal returns the unique active session, or ErrNoSession.
func (c *Client) ActiveRehearsal(ctx context.Context) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodGet, "/rehearsals/active", nil, &session)
	return session, err
}

// Rehearsal fetches a session by id regardless of its active flag.
func (c *Client) Rehearsal(ctx context.Context, sessionID string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodGet, "/rehearsals/"+sessionID, nil, &session)
	return session, err
}

// ChangeSong replaces the session's current song (admin of session only).
func (c *Client) ChangeSong(ctx context.Context, sessionID, songID string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPatch, "/rehearsals/"+sessionID+"/song", map[string]string{"songId": songID}, &session)
	return session, err
}

// QuitRehearsal ends the session (admin of session only).
func (c *Client) QuitRehearsal(ctx context.Context, sessionID string) (Session, error) {
	var resp struct {
		Session Session `json:"session"`
	}
	err := c.do(ctx, http.MethodPost, "/rehearsals/quit/"+sessionID, nil, &resp)
	return resp.Session, err
}

// Song fetches a catalog song with content.
func (c *Client) Song(ctx context.Context, songID string) (Song, error) {
	var song Song
	err := c.do(ctx, http.MethodGet, "/songs/"+songID, nil, &song)
	return song, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, body.Error)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, body.Error)
	case http.StatusNotFound:
		// Session-missing, session-ended, and no-active-session all route
		// to the same waiting state client-side.
		return fmt.Errorf("%w: %s", ErrNoSession, body.Error)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
}

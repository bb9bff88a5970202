package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bandsync/backend/internal/database"
	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/middleware"
	"github.com/bandsync/backend/internal/realtime"
	"github.com/bandsync/backend/internal/services"
)

// noopBroadcaster satisfies the service's fan-out dependency without a hub.
type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToRoom(string, realtime.Event) {}
func (noopBroadcaster) BroadcastAll(realtime.Event)            {}

func newTestHandler(t *testing.T) *RehearsalHandler {
	t.Helper()
	conn, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := database.RunMigrations(conn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	queries := db.New(conn)
	service := services.NewRehearsalService(queries, noopBroadcaster{}, services.NewInviteService(queries))
	return NewRehearsalHandler(service)
}

// newTestRequest builds a request carrying claims and chi URL params, the way
// the router would after auth.
func newTestRequest(t *testing.T, method, path string, body any, claims *services.Claims, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx := req.Context()
	if claims != nil {
		ctx = context.WithValue(ctx, middleware.ClaimsKey, claims)
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) services.Session {
	t.Helper()
	var session services.Session
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

var (
	testAdmin  = &services.Claims{UserID: "admin-1", Name: "Alice", Role: services.RoleAdmin}
	testPlayer = &services.Claims{UserID: "player-1", Name: "Bob", Role: services.RolePlayer, Instrument: "Drums"}
)

func createTestSession(t *testing.T, h *RehearsalHandler, songID string) services.Session {
	t.Helper()
	var body any
	if songID != "" {
		body = map[string]string{"currentSongId": songID}
	}
	req := newTestRequest(t, http.MethodPost, "/rehearsals", body, testAdmin, nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	return decodeSession(t, rec)
}

func TestCreateRehearsal(t *testing.T) {
	h := newTestHandler(t)

	session := createTestSession(t, h, "song-1")

	if session.AdminID != "admin-1" || !session.IsActive {
		t.Errorf("unexpected session: %+v", session)
	}
	if session.CurrentSongID == nil || *session.CurrentSongID != "song-1" {
		t.Errorf("currentSongId = %v, want song-1", session.CurrentSongID)
	}
	if session.InviteCode == "" {
		t.Error("admin response missing invite code")
	}
}

func TestCreateRehearsalWithoutBody(t *testing.T) {
	h := newTestHandler(t)

	req := newTestRequest(t, http.MethodPost, "/rehearsals", nil, testAdmin, nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	session := decodeSession(t, rec)
	if session.CurrentSongID != nil {
		t.Errorf("currentSongId = %v, want none", *session.CurrentSongID)
	}
}

func TestJoinRehearsal(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPost, "/rehearsals/"+session.ID+"/join", nil,
		testPlayer, map[string]string{"id": session.ID})
	rec := httptest.NewRecorder()
	h.Join(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	joined := decodeSession(t, rec)
	if len(joined.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(joined.Participants))
	}
	if joined.InviteCode != "" {
		t.Error("invite code leaked to player")
	}
}

func TestJoinMissingSession(t *testing.T) {
	h := newTestHandler(t)

	req := newTestRequest(t, http.MethodPost, "/rehearsals/nope/join", nil,
		testPlayer, map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	h.Join(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestJoinByCode(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPost, "/rehearsals/join-by-code",
		map[string]string{"code": session.InviteCode}, testPlayer, nil)
	rec := httptest.NewRecorder()
	h.JoinByCode(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	joined := decodeSession(t, rec)
	if joined.ID != session.ID {
		t.Errorf("joined %s, want %s", joined.ID, session.ID)
	}

	req = newTestRequest(t, http.MethodPost, "/rehearsals/join-by-code",
		map[string]string{"code": "wrong-code-0"}, testPlayer, nil)
	rec = httptest.NewRecorder()
	h.JoinByCode(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("bad code status = %d, want 404", rec.Code)
	}
}

func TestGetActiveRehearsal(t *testing.T) {
	h := newTestHandler(t)

	req := newTestRequest(t, http.MethodGet, "/rehearsals/active", nil, testPlayer, nil)
	rec := httptest.NewRecorder()
	h.GetActive(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no session status = %d, want 404", rec.Code)
	}

	session := createTestSession(t, h, "")

	rec = httptest.NewRecorder()
	h.GetActive(rec, newTestRequest(t, http.MethodGet, "/rehearsals/active", nil, testPlayer, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	active := decodeSession(t, rec)
	if active.ID != session.ID {
		t.Errorf("active = %s, want %s", active.ID, session.ID)
	}
	if active.InviteCode != "" {
		t.Error("invite code leaked to player via active lookup")
	}
}

func TestChangeSong(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPatch, "/rehearsals/"+session.ID+"/song",
		map[string]string{"songId": "song-42"}, testAdmin, map[string]string{"id": session.ID})
	rec := httptest.NewRecorder()
	h.ChangeSong(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	updated := decodeSession(t, rec)
	if updated.CurrentSongID == nil || *updated.CurrentSongID != "song-42" {
		t.Errorf("currentSongId = %v, want song-42", updated.CurrentSongID)
	}
}

func TestChangeSongForbiddenForPlayer(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPatch, "/rehearsals/"+session.ID+"/song",
		map[string]string{"songId": "song-42"}, testPlayer, map[string]string{"id": session.ID})
	rec := httptest.NewRecorder()
	h.ChangeSong(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestChangeSongValidation(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPatch, "/rehearsals/"+session.ID+"/song",
		map[string]string{}, testAdmin, map[string]string{"id": session.ID})
	rec := httptest.NewRecorder()
	h.ChangeSong(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuitRehearsal(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	req := newTestRequest(t, http.MethodPost, "/rehearsals/quit/"+session.ID, nil,
		testAdmin, map[string]string{"id": session.ID})
	rec := httptest.NewRecorder()
	h.Quit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Message string           `json:"message"`
		Session services.Session `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.IsActive {
		t.Error("ended session reported active")
	}

	// Ending twice surfaces the hidden lifecycle as 404.
	rec = httptest.NewRecorder()
	h.Quit(rec, newTestRequest(t, http.MethodPost, "/rehearsals/quit/"+session.ID, nil,
		testAdmin, map[string]string{"id": session.ID}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("double quit status = %d, want 404", rec.Code)
	}
}

func TestGetEndedSessionStillVisible(t *testing.T) {
	h := newTestHandler(t)
	session := createTestSession(t, h, "")

	rec := httptest.NewRecorder()
	h.Quit(rec, newTestRequest(t, http.MethodPost, "/rehearsals/quit/"+session.ID, nil,
		testAdmin, map[string]string{"id": session.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("quit status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, newTestRequest(t, http.MethodGet, "/rehearsals/"+session.ID, nil,
		testPlayer, map[string]string{"id": session.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeSession(t, rec)
	if got.IsActive {
		t.Error("ended session reported active")
	}
}

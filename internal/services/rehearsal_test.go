package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/realtime"
)

// fakeStore mimics the SQLite layer's semantics in memory: the create
// transaction deactivates all prior sessions, participant inserts ignore
// duplicates, and song/end updates only match active rows.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]db.Session
	participants map[string][]db.Participant
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]db.Session),
		participants: make(map[string][]db.Participant),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, arg db.CreateSessionParams) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.IsActive {
			s.IsActive = false
			f.sessions[id] = s
		}
	}
	session := db.Session{
		ID:            arg.ID,
		AdminID:       arg.AdminID,
		CurrentSongID: arg.CurrentSongID,
		InviteCode:    arg.InviteCode,
		IsActive:      true,
	}
	f.sessions[arg.ID] = session
	f.participants[arg.ID] = []db.Participant{{
		SessionID:  arg.ID,
		UserID:     arg.AdminID,
		Name:       arg.AdminName,
		Instrument: arg.AdminInstrument,
	}}
	return session, nil
}

func (f *fakeStore) GetSessionByID(_ context.Context, id string) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return db.Session{}, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) GetActiveSession(_ context.Context) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.IsActive {
			return s, nil
		}
	}
	return db.Session{}, sql.ErrNoRows
}

func (f *fakeStore) GetActiveSessionByInviteCode(_ context.Context, code string) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.IsActive && s.InviteCode == code {
			return s, nil
		}
	}
	return db.Session{}, sql.ErrNoRows
}

func (f *fakeStore) InviteCodeExists(_ context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.InviteCode == code {
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) UpdateSessionSong(_ context.Context, arg db.UpdateSessionSongParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[arg.ID]
	if !ok || !s.IsActive {
		return 0, nil
	}
	s.CurrentSongID = sql.NullString{String: arg.SongID, Valid: true}
	f.sessions[arg.ID] = s
	return 1, nil
}

func (f *fakeStore) EndSession(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.IsActive {
		return 0, nil
	}
	s.IsActive = false
	f.sessions[id] = s
	return 1, nil
}

func (f *fakeStore) AddParticipant(_ context.Context, arg db.AddParticipantParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[arg.SessionID] {
		if p.UserID == arg.UserID {
			return nil
		}
	}
	f.participants[arg.SessionID] = append(f.participants[arg.SessionID], db.Participant{
		SessionID:  arg.SessionID,
		UserID:     arg.UserID,
		Name:       arg.Name,
		Instrument: arg.Instrument,
	})
	return nil
}

func (f *fakeStore) ListParticipants(_ context.Context, sessionID string) ([]db.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Participant(nil), f.participants[sessionID]...), nil
}

// recordingBroadcaster captures fan-out calls for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	room   []roomEvent
	global []realtime.Event
}

type roomEvent struct {
	sessionID string
	evt       realtime.Event
}

func (b *recordingBroadcaster) BroadcastToRoom(sessionID string, evt realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, roomEvent{sessionID: sessionID, evt: evt})
}

func (b *recordingBroadcaster) BroadcastAll(evt realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, evt)
}

func newTestService() (*RehearsalService, *fakeStore, *recordingBroadcaster) {
	store := newFakeStore()
	broadcaster := &recordingBroadcaster{}
	return NewRehearsalService(store, broadcaster, NewInviteService(store)), store, broadcaster
}

func adminClaims() *Claims {
	return &Claims{UserID: "admin-1", Name: "Alice", Role: RoleAdmin}
}

func playerClaims() *Claims {
	return &Claims{UserID: "player-1", Name: "Bob", Role: RolePlayer, Instrument: "Drums"}
}

func TestCreateDeactivatesPriorActive(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, adminClaims(), "")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(ctx, adminClaims(), "")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	active, err := svc.GetActive(ctx, adminClaims())
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active session = %s, want %s", active.ID, second.ID)
	}

	// The first session is now invisible to joins.
	if _, err := svc.Join(ctx, first.ID, playerClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("join deactivated session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Create(context.Background(), nil, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Create(context.Background(), &Claims{}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty claims: err = %v, want ErrUnauthenticated", err)
	}
}

func TestCreateBroadcastsGlobally(t *testing.T) {
	svc, _, broadcaster := newTestService()

	session, err := svc.Create(context.Background(), adminClaims(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(broadcaster.global) != 1 {
		t.Fatalf("global broadcasts = %d, want 1", len(broadcaster.global))
	}
	evt := broadcaster.global[0]
	if evt.Type != realtime.KindSessionCreated || evt.SessionID != session.ID {
		t.Errorf("got %+v, want session-created %s", evt, session.ID)
	}
	if len(broadcaster.room) != 0 {
		t.Errorf("unexpected room broadcasts: %+v", broadcaster.room)
	}
}

func TestCreateSnapshotsAdminAsParticipant(t *testing.T) {
	svc, _, _ := newTestService()

	session, err := svc.Create(context.Background(), adminClaims(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(session.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(session.Participants))
	}
	if session.Participants[0].UserID != "admin-1" || session.Participants[0].Name != "Alice" {
		t.Errorf("unexpected admin snapshot: %+v", session.Participants[0])
	}
	if session.InviteCode == "" {
		t.Error("expected admin view to include the invite code")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")

	first, err := svc.Join(ctx, session.ID, playerClaims())
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	second, err := svc.Join(ctx, session.ID, playerClaims())
	if err != nil {
		t.Fatalf("second join: %v", err)
	}

	if len(first.Participants) != 2 || len(second.Participants) != 2 {
		t.Errorf("participants = %d then %d, want 2 both times",
			len(first.Participants), len(second.Participants))
	}

	count := 0
	for _, p := range second.Participants {
		if p.UserID == "player-1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("player appears %d times, want exactly once", count)
	}
}

func TestJoinHidesInviteCodeFromPlayers(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")

	joined, err := svc.Join(ctx, session.ID, playerClaims())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.InviteCode != "" {
		t.Error("invite code leaked to a non-admin participant")
	}
}

func TestJoinUnknownSession(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Join(context.Background(), "nope", playerClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestJoinByCode(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")

	joined, err := svc.JoinByCode(ctx, session.InviteCode, playerClaims())
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if joined.ID != session.ID {
		t.Errorf("joined %s, want %s", joined.ID, session.ID)
	}

	if _, err := svc.JoinByCode(ctx, "wrong-code-0", playerClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("bad code: err = %v, want ErrSessionNotFound", err)
	}
}

func TestChangeSongByNonAdminFails(t *testing.T) {
	svc, store, broadcaster := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")
	svc.Join(ctx, session.ID, playerClaims())

	_, err := svc.ChangeSong(ctx, session.ID, playerClaims(), "song-1")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	stored, _ := store.GetSessionByID(ctx, session.ID)
	if stored.CurrentSongID.Valid {
		t.Error("currentSongId mutated by a forbidden change")
	}
	if len(broadcaster.room) != 0 {
		t.Errorf("forbidden change broadcast events: %+v", broadcaster.room)
	}
}

func TestChangeSongRequiresSongID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")

	if _, err := svc.ChangeSong(ctx, session.ID, adminClaims(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestChangeSongBroadcastsPersistedSong(t *testing.T) {
	svc, store, broadcaster := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")

	updated, err := svc.ChangeSong(ctx, session.ID, adminClaims(), "song-42")
	if err != nil {
		t.Fatalf("change song: %v", err)
	}
	if updated.CurrentSongID == nil || *updated.CurrentSongID != "song-42" {
		t.Errorf("currentSongId = %v, want song-42", updated.CurrentSongID)
	}

	// The broadcast carries exactly the id persisted for the session.
	stored, _ := store.GetSessionByID(ctx, session.ID)
	if len(broadcaster.room) != 1 {
		t.Fatalf("room broadcasts = %d, want 1", len(broadcaster.room))
	}
	got := broadcaster.room[0]
	if got.sessionID != session.ID || got.evt.Type != realtime.KindSongChanged || got.evt.SongID != stored.CurrentSongID.String {
		t.Errorf("broadcast %+v does not match persisted song %q", got, stored.CurrentSongID.String)
	}
}

func TestEndIsTerminal(t *testing.T) {
	svc, _, broadcaster := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")
	svc.Join(ctx, session.ID, playerClaims())

	ended, err := svc.End(ctx, session.ID, adminClaims())
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.IsActive {
		t.Error("ended session still marked active")
	}

	last := broadcaster.room[len(broadcaster.room)-1]
	if last.sessionID != session.ID || last.evt.Type != realtime.KindSessionEnded {
		t.Errorf("last room broadcast = %+v, want session-ended for %s", last, session.ID)
	}

	if _, err := svc.Join(ctx, session.ID, playerClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("join after end: err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.ChangeSong(ctx, session.ID, adminClaims(), "song-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("change song after end: err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.End(ctx, session.ID, adminClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("double end: err = %v, want ErrSessionNotFound", err)
	}
}

func TestEndByNonAdminFails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")
	svc.Join(ctx, session.ID, playerClaims())

	if _, err := svc.End(ctx, session.ID, playerClaims()); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestGetActiveWithNone(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.GetActive(context.Background(), playerClaims()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestGetByIDReturnsEndedSessions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, _ := svc.Create(ctx, adminClaims(), "")
	svc.End(ctx, session.ID, adminClaims())

	got, err := svc.GetByID(ctx, session.ID, playerClaims())
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.IsActive {
		t.Error("ended session reported active")
	}

	if _, err := svc.GetByID(ctx, "nope", playerClaims()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown id: err = %v, want ErrSessionNotFound", err)
	}
}

// Full lifecycle: create without a song, player joins and waits, admin picks
// a song, the room hears about it, then the session ends.
func TestRehearsalLifecycle(t *testing.T) {
	svc, _, broadcaster := newTestService()
	ctx := context.Background()

	session, err := svc.Create(ctx, adminClaims(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.CurrentSongID != nil {
		t.Errorf("new session has song %v, want none", *session.CurrentSongID)
	}

	joined, err := svc.Join(ctx, session.ID, playerClaims())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.CurrentSongID != nil {
		t.Error("player should see no song selected yet")
	}

	if _, err := svc.ChangeSong(ctx, session.ID, adminClaims(), "song-42"); err != nil {
		t.Fatalf("change song: %v", err)
	}

	if len(broadcaster.room) != 1 || broadcaster.room[0].evt.SongID != "song-42" {
		t.Fatalf("expected one song-changed(song-42) broadcast, got %+v", broadcaster.room)
	}

	if _, err := svc.End(ctx, session.ID, adminClaims()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.GetActive(ctx, playerClaims()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("after end: err = %v, want ErrNoActiveSession", err)
	}
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/realtime"
)

// RehearsalStore is the persistence surface the rehearsal service depends on.
// *db.Queries satisfies it; tests substitute a fake.
type RehearsalStore interface {
	CreateSession(ctx context.Context, arg db.CreateSessionParams) (db.Session, error)
	GetSessionByID(ctx context.Context, id string) (db.Session, error)
	GetActiveSession(ctx context.Context) (db.Session, error)
	GetActiveSessionByInviteCode(ctx context.Context, code string) (db.Session, error)
	InviteCodeExists(ctx context.Context, code string) (int64, error)
	UpdateSessionSong(ctx context.Context, arg db.UpdateSessionSongParams) (int64, error)
	EndSession(ctx context.Context, id string) (int64, error)
	AddParticipant(ctx context.Context, arg db.AddParticipantParams) error
	ListParticipants(ctx context.Context, sessionID string) ([]db.Participant, error)
}

// Broadcaster is the realtime fan-out surface. The rehearsal service holds an
// explicit reference injected at construction; it never reaches for a global.
type Broadcaster interface {
	BroadcastToRoom(sessionID string, evt realtime.Event)
	BroadcastAll(evt realtime.Event)
}

// Session is the externally-visible view of a rehearsal session.
type Session struct {
	ID            string        `json:"id"`
	AdminID       string        `json:"adminId"`
	CurrentSongID *string       `json:"currentSongId,omitempty"`
	Participants  []Participant `json:"participants"`
	IsActive      bool          `json:"isActive"`
	InviteCode    string        `json:"inviteCode,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Participant is a user snapshot taken at join time.
type Participant struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Instrument string `json:"instrument,omitempty"`
}

// RehearsalService enforces the session lifecycle: at most one active session
// system-wide, admin-only mutations, idempotent joins, and terminal ending.
// Every successful mutation is persisted first, then fanned out through the
// broadcaster; a failed delivery never rolls back a persisted change.
type RehearsalService struct {
	store       RehearsalStore
	broadcaster Broadcaster
	invites     *InviteService
}

// NewRehearsalService wires the service to its store and broadcast channel.
func NewRehearsalService(store RehearsalStore, broadcaster Broadcaster, invites *InviteService) *RehearsalService {
	return &RehearsalService{
		store:       store,
		broadcaster: broadcaster,
		invites:     invites,
	}
}

// Create starts a new session owned by the caller, deactivating any prior
// active session in the same storage transaction. The session-created event
// goes to every connected client: no room exists yet for the new session, so
// idle clients would otherwise never learn about it.
func (s *RehearsalService) Create(ctx context.Context, admin *Claims, songID string) (Session, error) {
	if admin == nil || admin.UserID == "" {
		return Session{}, ErrUnauthenticated
	}

	code, err := s.invites.Generate(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("generate invite code: %w", err)
	}

	var currentSong sql.NullString
	if songID != "" {
		currentSong = sql.NullString{String: songID, Valid: true}
	}

	created, err := s.store.CreateSession(ctx, db.CreateSessionParams{
		ID:              uuid.New().String(),
		AdminID:         admin.UserID,
		AdminName:       admin.Name,
		AdminInstrument: admin.Instrument,
		CurrentSongID:   currentSong,
		InviteCode:      code,
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	s.broadcaster.BroadcastAll(realtime.SessionCreated(created.ID))

	return s.assemble(ctx, created, true)
}

// Join adds the caller to an active session. Joining twice is a no-op that
// returns current state. A missing and an ended session are reported
// identically as ErrSessionNotFound.
func (s *RehearsalService) Join(ctx context.Context, sessionID string, user *Claims) (Session, error) {
	if user == nil || user.UserID == "" {
		return Session{}, ErrUnauthenticated
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	err = s.store.AddParticipant(ctx, db.AddParticipantParams{
		SessionID:  session.ID,
		UserID:     user.UserID,
		Name:       user.Name,
		Instrument: user.Instrument,
	})
	if err != nil {
		return Session{}, fmt.Errorf("add participant: %w", err)
	}

	return s.assemble(ctx, session, user.UserID == session.AdminID)
}

// JoinByCode resolves an invite code to the active session and joins it.
func (s *RehearsalService) JoinByCode(ctx context.Context, code string, user *Claims) (Session, error) {
	if user == nil || user.UserID == "" {
		return Session{}, ErrUnauthenticated
	}
	if code == "" {
		return Session{}, fmt.Errorf("%w: code is required", ErrValidation)
	}

	session, err := s.store.GetActiveSessionByInviteCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("resolve invite code: %w", err)
	}

	return s.Join(ctx, session.ID, user)
}

// ChangeSong replaces the session's current song. Only the session admin may
// do this; the conditional update makes the mutation impossible once the
// session has ended, even if it ended between the read and the write.
func (s *RehearsalService) ChangeSong(ctx context.Context, sessionID string, requester *Claims, songID string) (Session, error) {
	if requester == nil || requester.UserID == "" {
		return Session{}, ErrUnauthenticated
	}
	if songID == "" {
		return Session{}, fmt.Errorf("%w: songId is required", ErrValidation)
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.AdminID != requester.UserID {
		return Session{}, ErrForbidden
	}

	rows, err := s.store.UpdateSessionSong(ctx, db.UpdateSessionSongParams{
		ID:     session.ID,
		SongID: songID,
	})
	if err != nil {
		return Session{}, fmt.Errorf("update session song: %w", err)
	}
	if rows == 0 {
		return Session{}, ErrSessionNotFound
	}

	s.broadcaster.BroadcastToRoom(session.ID, realtime.SongChanged(songID))

	session.CurrentSongID = sql.NullString{String: songID, Valid: true}
	return s.assemble(ctx, session, true)
}

// End deactivates the session. The transition is terminal; subsequent joins
// and song changes fail with ErrSessionNotFound.
func (s *RehearsalService) End(ctx context.Context, sessionID string, requester *Claims) (Session, error) {
	if requester == nil || requester.UserID == "" {
		return Session{}, ErrUnauthenticated
	}

	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.AdminID != requester.UserID {
		return Session{}, ErrForbidden
	}

	rows, err := s.store.EndSession(ctx, session.ID)
	if err != nil {
		return Session{}, fmt.Errorf("end session: %w", err)
	}
	if rows == 0 {
		return Session{}, ErrSessionNotFound
	}

	s.broadcaster.BroadcastToRoom(session.ID, realtime.SessionEnded())

	session.IsActive = false
	return s.assemble(ctx, session, true)
}

// GetActive returns the unique active session, used by reconnecting and
// freshly-logged-in players to discover where to join.
func (s *RehearsalService) GetActive(ctx context.Context, viewer *Claims) (Session, error) {
	session, err := s.store.GetActiveSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoActiveSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("get active session: %w", err)
	}
	return s.assemble(ctx, session, viewer != nil && viewer.UserID == session.AdminID)
}

// GetByID returns a session without checking its active flag, letting a
// client distinguish "never existed" from "existed but ended" by inspection.
func (s *RehearsalService) GetByID(ctx context.Context, sessionID string, viewer *Claims) (Session, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s.assemble(ctx, session, viewer != nil && viewer.UserID == session.AdminID)
}

// loadActive fetches a session and folds "missing" and "ended" into the same
// error, per the lifecycle-hiding contract.
func (s *RehearsalService) loadActive(ctx context.Context, sessionID string) (db.Session, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return db.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !session.IsActive {
		return db.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// assemble builds the external view. The invite code is visible to the
// session admin only.
func (s *RehearsalService) assemble(ctx context.Context, session db.Session, isAdmin bool) (Session, error) {
	participants, err := s.store.ListParticipants(ctx, session.ID)
	if err != nil {
		return Session{}, fmt.Errorf("list participants: %w", err)
	}

	out := Session{
		ID:           session.ID,
		AdminID:      session.AdminID,
		Participants: make([]Participant, len(participants)),
		IsActive:     session.IsActive,
		CreatedAt:    session.CreatedAt.Time,
	}
	if session.CurrentSongID.Valid {
		songID := session.CurrentSongID.String
		out.CurrentSongID = &songID
	}
	if isAdmin {
		out.InviteCode = session.InviteCode
	}
	for i, p := range participants {
		out.Participants[i] = Participant{
			UserID:     p.UserID,
			Name:       p.Name,
			Instrument: p.Instrument,
		}
	}
	return out, nil
}

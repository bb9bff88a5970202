package db

import (
	"context"
	"database/sql"
	"fmt"
)

const sessionColumns = "id, admin_id, current_song_id, invite_code, is_active, created_at, ended_at"

func scanSession(row *sql.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.AdminID, &s.CurrentSongID, &s.InviteCode, &s.IsActive, &s.CreatedAt, &s.EndedAt)
	return s, err
}

// CreateSessionParams holds the inputs for CreateSession. The admin's name and
// instrument are snapshotted into the participant list at creation time.
type CreateSessionParams struct {
	ID              string
	AdminID         string
	AdminName       string
	AdminInstrument string
	CurrentSongID   sql.NullString
	InviteCode      string
}

// CreateSession atomically deactivates every currently-active session and
// inserts the new one with the admin as its first participant. Running the
// deactivate-then-insert sequence in a single transaction (backed by the
// partial unique index on is_active) guarantees at most one active session
// even under concurrent creates.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET is_active = 0, ended_at = CURRENT_TIMESTAMP WHERE is_active = 1")
	if err != nil {
		return Session{}, fmt.Errorf("deactivate previous sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions (id, admin_id, current_song_id, invite_code, is_active) VALUES (?, ?, ?, ?, 1)",
		arg.ID, arg.AdminID, arg.CurrentSongID, arg.InviteCode)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO participants (session_id, user_id, name, instrument) VALUES (?, ?, ?, ?)",
		arg.ID, arg.AdminID, arg.AdminName, arg.AdminInstrument)
	if err != nil {
		return Session{}, fmt.Errorf("insert admin participant: %w", err)
	}

	session, err := scanSession(tx.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", arg.ID))
	if err != nil {
		return Session{}, fmt.Errorf("read back session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit create session: %w", err)
	}
	return session, nil
}

// GetSessionByID returns a session regardless of its active flag.
// Returns sql.ErrNoRows if no such session exists.
func (q *Queries) GetSessionByID(ctx context.Context, id string) (Session, error) {
	return scanSession(q.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
}

// GetActiveSession returns the unique active session, or sql.ErrNoRows.
func (q *Queries) GetActiveSession(ctx context.Context) (Session, error) {
	return scanSession(q.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE is_active = 1"))
}

// GetActiveSessionByInviteCode resolves an invite code to the active session.
func (q *Queries) GetActiveSessionByInviteCode(ctx context.Context, code string) (Session, error) {
	return scanSession(q.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE invite_code = ? AND is_active = 1", code))
}

// InviteCodeExists reports whether any session already uses the given code.
func (q *Queries) InviteCodeExists(ctx context.Context, code string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE invite_code = ?", code).Scan(&count)
	return count, err
}

// UpdateSessionSongParams holds the inputs for UpdateSessionSong.
type UpdateSessionSongParams struct {
	ID     string
	SongID string
}

// UpdateSessionSong replaces the current song of an active session. Returns
// the number of rows affected; zero means the session is missing or ended.
func (q *Queries) UpdateSessionSong(ctx context.Context, arg UpdateSessionSongParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE sessions SET current_song_id = ? WHERE id = ? AND is_active = 1",
		arg.SongID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EndSession deactivates a session. The transition is terminal: the
// conditional update cannot match an already-ended session, so reactivation
// or double-ending is impossible. Returns rows affected.
func (q *Queries) EndSession(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE sessions SET is_active = 0, ended_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddParticipantParams holds the inputs for AddParticipant.
type AddParticipantParams struct {
	SessionID  string
	UserID     string
	Name       string
	Instrument string
}

// AddParticipant appends a participant snapshot. INSERT OR IGNORE on the
// (session_id, user_id) primary key makes the operation idempotent, including
// under concurrent joins by the same user.
func (q *Queries) AddParticipant(ctx context.Context, arg AddParticipantParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO participants (session_id, user_id, name, instrument) VALUES (?, ?, ?, ?)",
		arg.SessionID, arg.UserID, arg.Name, arg.Instrument)
	return err
}

// ListParticipants returns a session's participants ordered by join time.
func (q *Queries) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT session_id, user_id, name, instrument, joined_at FROM participants WHERE session_id = ? ORDER BY joined_at, rowid",
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.Name, &p.Instrument, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

package db

import "database/sql"

// Session is a persisted rehearsal session row.
type Session struct {
	ID            string
	AdminID       string
	CurrentSongID sql.NullString
	InviteCode    string
	IsActive      bool
	CreatedAt     sql.NullTime
	EndedAt       sql.NullTime
}

// Participant is a denormalized snapshot of a user captured at join time.
// It does not track later profile changes.
type Participant struct {
	SessionID  string
	UserID     string
	Name       string
	Instrument string
	JoinedAt   sql.NullTime
}

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Instrument   string
	CreatedAt    sql.NullTime
}

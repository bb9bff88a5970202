package db

import (
	"context"
	"database/sql"
)

const userColumns = "id, name, email, password_hash, role, instrument, created_at"

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Instrument, &u.CreatedAt)
	return u, err
}

// CreateUserParams holds the inputs for CreateUser.
type CreateUserParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Instrument   string
}

// CreateUser inserts a new account. The email unique constraint surfaces as
// an error the caller maps to a conflict.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role, instrument) VALUES (?, ?, ?, ?, ?, ?)",
		arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.Role, arg.Instrument)
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, arg.ID)
}

// GetUserByID looks up an account by id.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByEmail looks up an account by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

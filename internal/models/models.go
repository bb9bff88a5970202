// Package models defines the JSON request and response shapes of the HTTP API.
package models

import "github.com/bandsync/backend/internal/services"

// Auth
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	Instrument string `json:"instrument,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Instrument string `json:"instrument,omitempty"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Rehearsal sessions
type CreateRehearsalRequest struct {
	CurrentSongID string `json:"currentSongId,omitempty"`
}

type ChangeSongRequest struct {
	SongID string `json:"songId"`
}

type JoinByCodeRequest struct {
	Code string `json:"code"`
}

type QuitRehearsalResponse struct {
	Message string           `json:"message"`
	Session services.Session `json:"session"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

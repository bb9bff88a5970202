package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bandsync/backend/internal/crypto"
	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/logging"
	"github.com/bandsync/backend/internal/models"
	"github.com/bandsync/backend/internal/services"
)

// AuthHandler manages account registration and login.
type AuthHandler struct {
	queries     *db.Queries
	authService *services.AuthService
}

// NewAuthHandler creates an AuthHandler with the required dependencies.
func NewAuthHandler(queries *db.Queries, authService *services.AuthService) *AuthHandler {
	return &AuthHandler{queries: queries, authService: authService}
}

// Register creates a new account and returns a signed token for it.
// Players must name one of the known instruments; admins may omit it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email, and password are required")
		return
	}

	if req.Role == "" {
		req.Role = string(services.RolePlayer)
	}
	if req.Role != string(services.RolePlayer) && req.Role != string(services.RoleAdmin) {
		writeError(w, http.StatusBadRequest, "role must be 'player' or 'admin'")
		return
	}
	if req.Role == string(services.RolePlayer) && !services.ValidInstrument(req.Instrument) {
		writeError(w, http.StatusBadRequest, "players must choose a valid instrument")
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to hash password", err)
		return
	}

	user, err := h.queries.CreateUser(r.Context(), db.CreateUserParams{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		Instrument:   req.Instrument,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to create user", err)
		return
	}

	h.respondWithToken(w, r, user, http.StatusCreated)
}

// Login authenticates by email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.queries.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadCredentials, "login with unknown email")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to fetch user", err)
		return
	}

	ok, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to verify password", err)
		return
	}
	if !ok {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadCredentials, "login with wrong password")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(w, r, user, http.StatusOK)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, user db.User, status int) {
	token, err := h.authService.GenerateToken(user.ID, user.Name, services.Role(user.Role), user.Instrument)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, status, models.AuthResponse{
		Token: token,
		User: models.UserResponse{
			ID:         user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Role:       user.Role,
			Instrument: user.Instrument,
		},
	})
}

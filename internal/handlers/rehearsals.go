package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bandsync/backend/internal/logging"
	"github.com/bandsync/backend/internal/middleware"
	"github.com/bandsync/backend/internal/models"
	"github.com/bandsync/backend/internal/services"
)

// RehearsalHandler exposes the session lifecycle over REST. All domain rules
// live in the service; the handler only translates HTTP.
type RehearsalHandler struct {
	service *services.RehearsalService
}

// NewRehearsalHandler creates a RehearsalHandler backed by the given service.
func NewRehearsalHandler(service *services.RehearsalService) *RehearsalHandler {
	return &RehearsalHandler{service: service}
}

// Create starts a new session owned by the caller, optionally with an initial
// song. Any previously active session is deactivated atomically.
func (h *RehearsalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRehearsalRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.service.Create(r.Context(), middleware.GetClaims(r.Context()), req.CurrentSongID)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Join adds the caller to the session. Re-joining is a no-op returning
// current state.
func (h *RehearsalHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	session, err := h.service.Join(r.Context(), sessionID, middleware.GetClaims(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to join session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// JoinByCode resolves an invite code to the active session and joins it.
func (h *RehearsalHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req models.JoinByCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.JoinByCode(r.Context(), req.Code, middleware.GetClaims(r.Context()))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadInviteCode, "join with unknown invite code")
		}
		writeDomainError(r.Context(), w, err, "failed to join session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GetActive returns the unique active session, if any.
func (h *RehearsalHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetActive(r.Context(), middleware.GetClaims(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to fetch active session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Get returns a session by id regardless of whether it has ended.
func (h *RehearsalHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	session, err := h.service.GetByID(r.Context(), sessionID, middleware.GetClaims(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to fetch session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// ChangeSong replaces the session's current song. Admin of the session only.
func (h *RehearsalHandler) ChangeSong(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req models.ChangeSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.ChangeSong(r.Context(), sessionID, middleware.GetClaims(r.Context()), req.SongID)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to change song")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Quit ends the session. Admin of the session only; the transition is
// terminal.
func (h *RehearsalHandler) Quit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	session, err := h.service.End(r.Context(), sessionID, middleware.GetClaims(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, models.QuitRehearsalResponse{
		Message: "session ended",
		Session: session,
	})
}

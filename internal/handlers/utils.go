package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	sentrygo "github.com/getsentry/sentry-go"

	"github.com/bandsync/backend/internal/logging"
	"github.com/bandsync/backend/internal/models"
	"github.com/bandsync/backend/internal/services"
)

// writeJSON serializes data as JSON and writes it to the response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a client error response without logging a cause.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the underlying error
// with a stack trace. Server errors are also reported to Sentry (a no-op when
// no DSN is configured).
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// 401/403 are covered by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}

	if status >= 400 && err != nil {
		wrappedErr := logging.WrapError(err, message)
		logging.LogErrorWithStatus(ctx, status, "error response", wrappedErr)
		if status >= 500 {
			sentrygo.CaptureException(wrappedErr)
		}
	}
}

// writeDomainError maps a service error to its HTTP response. Unknown errors
// become a 500 with the given fallback message.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, services.ErrForbidden):
		logging.LogSecurityEvent(ctx, logging.SecurityEventForbidden, "forbidden session mutation")
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, services.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found or inactive")
	case errors.Is(err, services.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no active session found")
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		writeErrorWithCause(ctx, w, http.StatusInternalServerError, fallback, err)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bandsync/backend/internal/songs"
)

// SongHandler serves the read-only song catalog.
type SongHandler struct {
	catalog *songs.Store
}

// NewSongHandler creates a SongHandler backed by the given catalog.
func NewSongHandler(catalog *songs.Store) *SongHandler {
	return &SongHandler{catalog: catalog}
}

// List returns every song in the catalog without content.
func (h *SongHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// Search filters the catalog by title or artist substring.
// An empty query returns an empty list.
func (h *SongHandler) Search(w http.ResponseWriter, r *http.Request) {
	results := h.catalog.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []songs.Summary{}
	}
	writeJSON(w, http.StatusOK, results)
}

// Get returns one song including its content.
func (h *SongHandler) Get(w http.ResponseWriter, r *http.Request) {
	song, err := h.catalog.Get(chi.URLParam(r, "id"))
	if errors.Is(err, songs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "song not found")
		return
	}
	writeJSON(w, http.StatusOK, song)
}

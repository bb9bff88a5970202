// Package songs serves the read-only song catalog. The catalog is a JSON
// file loaded once at startup; content never changes while the server runs.
package songs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Song is one catalog entry. Content holds the lyrics and chords payload
// displayed during a rehearsal.
type Song struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Content struct {
		Lyrics string `json:"lyrics"`
		Chords string `json:"chords"`
	} `json:"content"`
}

// Summary is the listing view of a song, without content.
type Summary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// ErrNotFound is returned when a song id is not in the catalog.
var ErrNotFound = fmt.Errorf("song not found")

// Store is an immutable in-memory song catalog.
type Store struct {
	byID  map[string]Song
	order []string
}

// Load reads the catalog JSON file (an array of songs) from disk.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read song catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from raw catalog JSON.
func Parse(data []byte) (*Store, error) {
	var list []Song
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse song catalog: %w", err)
	}

	s := &Store{byID: make(map[string]Song, len(list))}
	for _, song := range list {
		if song.ID == "" {
			return nil, fmt.Errorf("song catalog entry %q has no id", song.Title)
		}
		if _, dup := s.byID[song.ID]; dup {
			return nil, fmt.Errorf("duplicate song id %q in catalog", song.ID)
		}
		s.byID[song.ID] = song
		s.order = append(s.order, song.ID)
	}
	return s, nil
}

// Get returns a song by id, or ErrNotFound.
func (s *Store) Get(id string) (Song, error) {
	song, ok := s.byID[id]
	if !ok {
		return Song{}, ErrNotFound
	}
	return song, nil
}

// List returns all songs in catalog order, without content.
func (s *Store) List() []Summary {
	out := make([]Summary, len(s.order))
	for i, id := range s.order {
		song := s.byID[id]
		out[i] = Summary{ID: song.ID, Title: song.Title, Artist: song.Artist}
	}
	return out
}

// Search returns songs whose title or artist contains the query,
// case-insensitively. An empty query matches nothing.
func (s *Store) Search(query string) []Summary {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var out []Summary
	for _, id := range s.order {
		song := s.byID[id]
		if strings.Contains(strings.ToLower(song.Title), query) ||
			strings.Contains(strings.ToLower(song.Artist), query) {
			out = append(out, Summary{ID: song.ID, Title: song.Title, Artist: song.Artist})
		}
	}
	return out
}

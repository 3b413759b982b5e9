package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hebrewvocab/internal/kv"
)

type storeValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type storeWrite struct {
	Value *string `json:"value"`
}

// registerStoreRoutes mounts the raw key-value surface polling clients use.
func (s *Server) registerStoreRoutes(r chi.Router) {
	r.Get("/", s.handleListKeys)
	r.Get("/{key}", s.handleGetKey)
	r.Put("/{key}", s.handleSetKey)
	r.Post("/{key}", s.handleSetKey)
	r.Delete("/{key}", s.handleDeleteKey)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.Store.Get(key)
	// an empty value reads as absent, as browser clients expect
	if errors.Is(err, kv.ErrNotFound) || value == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "key not found"})
		return
	}
	writeJSON(w, http.StatusOK, storeValue{Key: key, Value: value})
}

func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body storeWrite
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value required"})
		return
	}
	s.Store.Set(key, *body.Value)
	s.Rooms.Observe(key)
	writeJSON(w, http.StatusOK, storeValue{Key: key, Value: *body.Value})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	deleted := s.Store.Delete(key)
	s.Rooms.Observe(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "deleted": deleted})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":   s.Store.Keys(prefix),
		"prefix": prefix,
	})
}

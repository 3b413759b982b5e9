package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hebrewvocab/internal/rooms"
	"hebrewvocab/internal/rules"
)

const (
	maxBodyBytes     = 64 << 10
	playerCookieName = "player_id"
)

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps sentinel errors to a status and a user-facing message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		status, msg = http.StatusNotFound, "room not found"
	case errors.Is(err, rules.ErrValidation), errors.Is(err, errBadBody):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, rules.ErrPrecondition):
		status, msg = http.StatusConflict, err.Error()
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func playerIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(playerCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setPlayerCookie(w http.ResponseWriter, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
}

// joinURL is the link a QR code or invite points at.
func (s *Server) joinURL(r *http.Request, code string) string {
	if base := strings.TrimSpace(s.BaseURL); base != "" {
		return strings.TrimRight(base, "/") + "/rooms/" + code
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/rooms/" + code
}

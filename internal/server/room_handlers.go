package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"hebrewvocab/internal/analytics"
	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/players"
	"hebrewvocab/internal/rooms"
	"hebrewvocab/internal/rules"
)

const qrSize = 320

type playerRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

type roomResponse struct {
	PlayerID string `json:"playerId,omitempty"`
	gamedata.View
	Result *rules.GuessResult `json:"result,omitempty"`
}

func (s *Server) registerRoomRoutes(r chi.Router) {
	r.Post("/rooms", s.handleCreateRoom)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", s.handleGetRoom)
		r.Post("/join", s.handleJoinRoom)
		r.Post("/ready", s.handleReady)
		r.Post("/start", s.handleStart)
		r.Post("/input", s.handleInput)
		r.Post("/guess", s.handleGuess)
		r.Get("/standings", s.handleStandings)
		r.Get("/qr", s.handleQR)
	})
}

// readPlayer decodes the body and fills the player id from the cookie when
// the body has none.
func (s *Server) readPlayer(w http.ResponseWriter, r *http.Request) (playerRequest, error) {
	var req playerRequest
	if err := decodeBody(w, r, &req); err != nil {
		return req, err
	}
	if req.PlayerID == "" {
		req.PlayerID = playerIDFromCookie(r)
	}
	return req, nil
}

func roomCode(r *http.Request) string {
	return rooms.NormalizeCode(chi.URLParam(r, "code"))
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	req, err := s.readPlayer(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PlayerID == "" {
		req.PlayerID = players.NewID()
	}

	code, room, err := s.Rooms.Create(req.PlayerID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setPlayerCookie(w, req.PlayerID)
	writeJSON(w, http.StatusCreated, roomResponse{PlayerID: req.PlayerID, View: gamedata.NewView(code, room)})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	room, err := s.Rooms.Get(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{View: gamedata.NewView(code, room)})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	req, err := s.readPlayer(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PlayerID == "" {
		req.PlayerID = players.NewID()
	}

	code := roomCode(r)
	room, err := s.Rooms.Join(code, req.PlayerID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setPlayerCookie(w, req.PlayerID)
	writeJSON(w, http.StatusOK, roomResponse{PlayerID: req.PlayerID, View: gamedata.NewView(code, room)})
}

// playerAction runs a transition that needs only the acting player.
func (s *Server) playerAction(w http.ResponseWriter, r *http.Request, fn func(code string, req playerRequest) (gamedata.Room, error)) {
	req, err := s.readPlayer(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PlayerID == "" {
		s.writeError(w, r, fmt.Errorf("%w: player id required", rules.ErrValidation))
		return
	}
	code := roomCode(r)
	room, err := fn(code, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{PlayerID: req.PlayerID, View: gamedata.NewView(code, room)})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.playerAction(w, r, func(code string, req playerRequest) (gamedata.Room, error) {
		return s.Rooms.Ready(code, req.PlayerID)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.playerAction(w, r, func(code string, req playerRequest) (gamedata.Room, error) {
		return s.Rooms.Start(code, req.PlayerID)
	})
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	s.playerAction(w, r, func(code string, req playerRequest) (gamedata.Room, error) {
		return s.Rooms.Input(code, req.PlayerID, req.Text)
	})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	req, err := s.readPlayer(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PlayerID == "" {
		s.writeError(w, r, fmt.Errorf("%w: player id required", rules.ErrValidation))
		return
	}
	code := roomCode(r)
	room, res, err := s.Rooms.Guess(code, req.PlayerID, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{PlayerID: req.PlayerID, View: gamedata.NewView(code, room), Result: &res})
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	room, err := s.Rooms.Get(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Recap(code, room))
}

// handleQR renders the room's join link as a PNG.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if _, err := s.Rooms.Get(code); err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"keys":   s.Store.Len(),
	})
}

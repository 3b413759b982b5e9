package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"hebrewvocab/internal/broadcast"
	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/wshub"
)

const keepAliveInterval = 25 * time.Second

var errUnknownCommand = errors.New("unknown command")

// handleEvents streams the room over SSE: the current state first, then a
// "state" event per change and a "phase" event per phase transition.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	live, room, err := s.Rooms.Subscribe(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := live.Broadcaster.Subscribe()
	defer live.Broadcaster.Unsubscribe(msgChan)
	s.Metrics.Subscribed("sse", 1)
	defer s.Metrics.Subscribed("sse", -1)

	initial, err := json.Marshal(gamedata.NewView(code, room))
	if err == nil {
		writeSSE(w, broadcast.EventState, string(initial))
		flusher.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			writeSSE(w, msg.Event, msg.Data)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data string) {
	_, _ = w.Write([]byte("event: " + event + "\n"))
	for _, line := range strings.Split(data, "\n") {
		_, _ = w.Write([]byte("data: " + line + "\n"))
	}
	_, _ = w.Write([]byte("\n"))
}

// handleWebsocket pushes the same state stream as handleEvents and accepts
// player commands on the same connection.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	live, room, err := s.Rooms.Subscribe(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		playerID = playerIDFromCookie(r)
	}
	name := ""
	if p, ok := room.Players.Get(playerID); ok {
		name = p.Name
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	client := wshub.NewClient(playerID, name, conn)
	if !live.Hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "room closed")
		return
	}
	defer live.Hub.Unregister(client)
	s.Metrics.Subscribed("ws", 1)
	defer s.Metrics.Subscribed("ws", -1)

	if state, err := json.Marshal(gamedata.NewView(code, room)); err == nil {
		client.Reply(wshub.ServerMessage{Type: broadcast.EventState, Room: state})
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		client.WritePump(ctx)
		cancel()
	}()

	err = client.ReadPump(ctx, func(_ context.Context, msg wshub.ClientMessage) error {
		return s.handleCommand(code, client, msg)
	})
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	s.log.Debug().Err(err).Str("code", code).Str("player", playerID).Msg("websocket closed")
}

func (s *Server) handleCommand(code string, client *wshub.Client, msg wshub.ClientMessage) error {
	var err error
	switch msg.Type {
	case "input":
		_, err = s.Rooms.Input(code, msg.PlayerID, msg.Text)
	case "ready":
		_, err = s.Rooms.Ready(code, msg.PlayerID)
	case "start":
		_, err = s.Rooms.Start(code, msg.PlayerID)
	case "guess":
		_, res, gerr := s.Rooms.Guess(code, msg.PlayerID, msg.Text)
		if gerr != nil {
			return gerr
		}
		data, merr := json.Marshal(res)
		if merr != nil {
			return merr
		}
		client.Reply(wshub.ServerMessage{Type: "result", PlayerID: msg.PlayerID, Result: data})
	default:
		return errUnknownCommand
	}
	return err
}

package gamedata

import (
	"strings"
	"time"

	"hebrewvocab/internal/players"
	"hebrewvocab/internal/words"
)

type Phase string

const (
	PhaseLobby    = Phase("lobby")
	PhaseGame     = Phase("game")
	PhaseGameOver = Phase("gameover")
)

const keyPrefix = "room_"

// Room is the whole shared record of one game session, stored as a single
// value under RoomKey(code).
type Room struct {
	Players          players.Roster              `json:"players"`
	CurrentWordIndex int                         `json:"currentWordIndex"`
	Round            int                         `json:"round"`
	GameStarted      bool                        `json:"gameStarted"`
	GameOver         bool                        `json:"gameOver"`
	MaxTries         int                         `json:"maxTries"`
	PlayerStates     map[string]PlayerRoundState `json:"playerStates"`
	LastUpdate       int64                       `json:"lastUpdate"`
}

// PlayerRoundState is one player's progress on the current word.
type PlayerRoundState struct {
	CorrectLetters Letters `json:"correctLetters"`
	TriesLeft      int     `json:"triesLeft"`
	RoundScore     int     `json:"roundScore"`
	CurrentInput   string  `json:"currentInput"`
	Finished       bool    `json:"finished"`
}

func RoomKey(code string) string {
	return keyPrefix + code
}

// KeyPrefix is the namespace shared by all room records.
func KeyPrefix() string {
	return keyPrefix
}

// CodeFromKey reports false for keys outside the room namespace.
func CodeFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, keyPrefix), true
}

func (r Room) Phase() Phase {
	switch {
	case r.GameOver:
		return PhaseGameOver
	case r.GameStarted:
		return PhaseGame
	default:
		return PhaseLobby
	}
}

func (r Room) CurrentWord() (words.Word, bool) {
	return words.At(r.CurrentWordIndex)
}

func (r Room) LastUpdated() time.Time {
	return time.UnixMilli(r.LastUpdate)
}

// Touch stamps the liveness marker.
func (r *Room) Touch(now time.Time) {
	r.LastUpdate = now.UnixMilli()
}

// AllFinished is false when no round states exist.
func (r Room) AllFinished() bool {
	if len(r.PlayerStates) == 0 {
		return false
	}
	for _, ps := range r.PlayerStates {
		if !ps.Finished {
			return false
		}
	}
	return true
}

// Clone deep-copies the record so callers can mutate the result freely.
func (r Room) Clone() Room {
	out := r
	out.Players = r.Players.Clone()
	if r.PlayerStates != nil {
		out.PlayerStates = make(map[string]PlayerRoundState, len(r.PlayerStates))
		for id, ps := range r.PlayerStates {
			ps.CorrectLetters = ps.CorrectLetters.Clone()
			out.PlayerStates[id] = ps
		}
	}
	return out
}

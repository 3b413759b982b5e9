// Package rules holds the game transitions. Every function takes a room by
// value and returns a new one; the input record is never modified.
package rules

import (
	"fmt"
	"strings"
	"time"

	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/players"
	"hebrewvocab/internal/words"
)

const (
	InitialRoundScore = 100
	MinPlayers        = 2
)

type Outcome string

const (
	OutcomeSolved     = Outcome("solved")
	OutcomeMiss       = Outcome("miss")
	OutcomeOutOfTries = Outcome("out_of_tries")
)

// GuessResult reports what a single CheckWord did for the guessing player.
// Word is only filled once the player can no longer guess this round.
type GuessResult struct {
	Outcome     Outcome          `json:"outcome"`
	Points      int              `json:"points"`
	TriesLeft   int              `json:"triesLeft"`
	RoundScore  int              `json:"roundScore"`
	Letters     gamedata.Letters `json:"correctLetters"`
	Word        string           `json:"word,omitempty"`
	AllFinished bool             `json:"allFinished"`
}

// MaxTries is the attempt allowance for a round number.
func MaxTries(round int) int {
	switch {
	case round <= 10:
		return 5
	case round <= 20:
		return 3
	default:
		return 1
	}
}

func CreateRoom(hostID, hostName string, now time.Time) (gamedata.Room, error) {
	hostName = players.NormalizeName(hostName)
	if hostID == "" || hostName == "" {
		return gamedata.Room{}, fmt.Errorf("%w: player name required", ErrValidation)
	}
	room := gamedata.Room{
		Players:          players.Roster{}.Add(hostID, hostName),
		CurrentWordIndex: 0,
		Round:            1,
		MaxTries:         MaxTries(1),
		PlayerStates:     map[string]gamedata.PlayerRoundState{},
	}
	room.Touch(now)
	return room, nil
}

// JoinRoom appends the player unless the id is already seated.
func JoinRoom(room gamedata.Room, playerID, name string, now time.Time) (gamedata.Room, error) {
	name = players.NormalizeName(name)
	if playerID == "" || name == "" {
		return room, fmt.Errorf("%w: player name required", ErrValidation)
	}
	if room.Players.Has(playerID) {
		return room.Clone(), nil
	}
	out := room.Clone()
	out.Players = out.Players.Add(playerID, name)
	if out.GameStarted && !out.GameOver {
		if out.PlayerStates == nil {
			out.PlayerStates = map[string]gamedata.PlayerRoundState{}
		}
		out.PlayerStates[playerID] = freshState(out.MaxTries)
	}
	out.Touch(now)
	return out, nil
}

// ToggleReady flips the player's lobby flag. Once the game has started the
// flags are frozen.
func ToggleReady(room gamedata.Room, playerID string, now time.Time) gamedata.Room {
	if !room.Players.Has(playerID) || room.GameStarted {
		return room.Clone()
	}
	out := room.Clone()
	out.Players = out.Players.ToggleReady(playerID)
	out.Touch(now)
	return out
}

func StartGame(room gamedata.Room, actorID string, now time.Time) (gamedata.Room, error) {
	switch {
	case room.GameStarted:
		return room, fmt.Errorf("%w: game already started", ErrPrecondition)
	case !room.Players.IsHost(actorID):
		return room, fmt.Errorf("%w: only the host can start the game", ErrPrecondition)
	case len(room.Players) < MinPlayers:
		return room, fmt.Errorf("%w: need at least %d players", ErrPrecondition, MinPlayers)
	case !room.Players.AllReady():
		return room, fmt.Errorf("%w: not every player is ready", ErrPrecondition)
	}
	out := room.Clone()
	out.GameStarted = true
	out.PlayerStates = freshStates(out.Players, out.MaxTries)
	out.Touch(now)
	return out, nil
}

// UpdateInput mirrors what the player is typing so others can watch.
func UpdateInput(room gamedata.Room, playerID, text string, now time.Time) gamedata.Room {
	ps, ok := room.PlayerStates[playerID]
	if !ok {
		return room.Clone()
	}
	out := room.Clone()
	ps.CorrectLetters = ps.CorrectLetters.Clone()
	ps.CurrentInput = text
	out.PlayerStates[playerID] = ps
	out.Touch(now)
	return out
}

// CheckWord scores one submission against the current word.
func CheckWord(room gamedata.Room, playerID, text string, now time.Time) (gamedata.Room, GuessResult, error) {
	if strings.TrimSpace(text) == "" {
		return room, GuessResult{}, fmt.Errorf("%w: empty guess", ErrValidation)
	}
	if !room.GameStarted || room.GameOver {
		return room, GuessResult{}, fmt.Errorf("%w: no round in progress", ErrPrecondition)
	}
	ps, ok := room.PlayerStates[playerID]
	if !ok {
		return room, GuessResult{}, fmt.Errorf("%w: player %q is not in this round", ErrPrecondition, playerID)
	}
	if ps.Finished {
		return room, GuessResult{}, fmt.Errorf("%w: player already finished the round", ErrPrecondition)
	}
	word, ok := room.CurrentWord()
	if !ok {
		return room, GuessResult{}, fmt.Errorf("%w: word index %d out of range", ErrPrecondition, room.CurrentWordIndex)
	}

	out := room.Clone()
	letters, complete := Reveal(word.Text, text, ps.CorrectLetters)
	ps.CorrectLetters = letters

	var res GuessResult
	if complete {
		out.Players = out.Players.AddScore(playerID, ps.RoundScore)
		ps.Finished = true
		res = GuessResult{Outcome: OutcomeSolved, Points: ps.RoundScore, Word: word.Text}
	} else {
		ps.TriesLeft--
		ps.RoundScore = ps.RoundScore * 4 / 5
		ps.CurrentInput = ""
		res = GuessResult{Outcome: OutcomeMiss}
		if ps.TriesLeft <= 0 {
			ps.TriesLeft = 0
			ps.Finished = true
			res = GuessResult{Outcome: OutcomeOutOfTries, Word: word.Text}
		}
	}
	out.PlayerStates[playerID] = ps
	out.Touch(now)

	res.TriesLeft = ps.TriesLeft
	res.RoundScore = ps.RoundScore
	res.Letters = ps.CorrectLetters.Clone()
	res.AllFinished = out.AllFinished()
	return out, res, nil
}

// Reveal compares the submission with the target rune by rune. A matching
// position is revealed; any other position keeps what prev already had.
// Positions past the end of either string never match.
func Reveal(target, submitted string, prev gamedata.Letters) (gamedata.Letters, bool) {
	t := []rune(target)
	s := []rune(submitted)
	out := make(gamedata.Letters, len(t))
	complete := true
	for i := range t {
		if i < len(s) && s[i] == t[i] {
			out[i] = string(t[i])
		} else {
			out[i] = prev.At(i)
		}
		if out[i] == "" {
			complete = false
		}
	}
	return out, complete
}

// AdvanceRound moves to the next word, or ends the game after the last one.
func AdvanceRound(room gamedata.Room, now time.Time) gamedata.Room {
	out := room.Clone()
	if !out.GameStarted || out.GameOver {
		return out
	}
	if out.CurrentWordIndex >= words.LastIndex() {
		out.GameOver = true
		out.Touch(now)
		return out
	}
	out.CurrentWordIndex++
	out.Round++
	out.MaxTries = MaxTries(out.Round)
	out.PlayerStates = freshStates(out.Players, out.MaxTries)
	out.Touch(now)
	return out
}

func freshState(maxTries int) gamedata.PlayerRoundState {
	return gamedata.PlayerRoundState{
		CorrectLetters: gamedata.Letters{},
		TriesLeft:      maxTries,
		RoundScore:     InitialRoundScore,
	}
}

func freshStates(roster players.Roster, maxTries int) map[string]gamedata.PlayerRoundState {
	states := make(map[string]gamedata.PlayerRoundState, len(roster))
	for _, id := range roster.IDs() {
		states[id] = freshState(maxTries)
	}
	return states
}

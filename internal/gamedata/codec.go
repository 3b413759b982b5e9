package gamedata

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed room record")

func Encode(r Room) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding room: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored record. Anything that is not a room, including a
// record without a player list or round number, is ErrMalformed.
func Decode(value string) (Room, error) {
	var r Room
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if r.Players == nil || r.Round < 1 {
		return Room{}, ErrMalformed
	}
	if r.PlayerStates == nil {
		r.PlayerStates = make(map[string]PlayerRoundState)
	}
	return r, nil
}

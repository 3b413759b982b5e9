package events

import "hebrewvocab/internal/gamedata"

// ChangeEvent is emitted after every committed write to a room. From is the
// phase the room was in before the write; PhaseChanged reports whether View
// crossed a lobby/game/gameover boundary.
type ChangeEvent struct {
	View         gamedata.View
	From         gamedata.Phase
	PhaseChanged bool
}

type Bus struct {
	Changes chan ChangeEvent
}

func NewBus() *Bus {
	return &Bus{
		Changes: make(chan ChangeEvent, 10),
	}
}

// Close ends the stream; no sends may follow.
func (b *Bus) Close() {
	close(b.Changes)
}

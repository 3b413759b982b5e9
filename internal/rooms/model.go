package rooms

import (
	"sync"
	"time"

	"hebrewvocab/internal/broadcast"
	"hebrewvocab/internal/events"
	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/wshub"
)

// Room is the in-process side of a room: the lock that serializes writes to
// its record, plus its push fan-out. The record itself lives in the KV store.
type Room struct {
	Code        string
	Bus         *events.Bus
	Broadcaster *broadcast.Broadcaster
	Hub         *wshub.Hub
	CreatedAt   time.Time

	mu        sync.Mutex
	phase     gamedata.Phase
	advancing int
	closed    bool
}

func newRoom(code string, now time.Time) *Room {
	bus := events.NewBus()
	hub := wshub.NewHub()
	return &Room{
		Code:        code,
		Bus:         bus,
		Hub:         hub,
		Broadcaster: broadcast.NewBroadcaster(bus, hub),
		CreatedAt:   now,
		phase:       gamedata.PhaseLobby,
	}
}

// publish must be called with mu held.
func (r *Room) publish(room gamedata.Room) {
	if r.closed {
		return
	}
	view := gamedata.NewView(r.Code, room)
	r.Bus.Changes <- events.ChangeEvent{
		View:         view,
		From:         r.phase,
		PhaseChanged: r.phase != view.Phase,
	}
	r.phase = view.Phase
}

// close must be called with mu held.
func (r *Room) close() {
	if r.closed {
		return
	}
	r.closed = true
	r.Bus.Close()
}

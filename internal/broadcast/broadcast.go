package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"hebrewvocab/internal/events"
	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/wshub"
)

const (
	EventState = "state"
	EventPhase = "phase"
)

// Message is one server-sent event: Event is the SSE event name, Data its
// JSON payload.
type Message struct {
	Event string
	Data  string
}

type PhaseChange struct {
	From gamedata.Phase `json:"from"`
	To   gamedata.Phase `json:"to"`
}

// Broadcaster fans a room's change stream out to SSE subscribers and, when
// set, to the room's websocket hub.
type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[chan Message]bool
	hub     *wshub.Hub
	closed  bool
	done    chan struct{}
}

func NewBroadcaster(bus *events.Bus, hub *wshub.Hub) *Broadcaster {
	b := &Broadcaster{
		Clients: make(map[chan Message]bool),
		hub:     hub,
		done:    make(chan struct{}),
	}
	go func() {
		for ev := range bus.Changes {
			b.forward(ev)
		}
		b.shutdown()
	}()
	return b
}

func (b *Broadcaster) forward(ev events.ChangeEvent) {
	state, err := json.Marshal(ev.View)
	if err != nil {
		log.Error().Err(err).Str("component", "broadcast").Str("code", ev.View.Code).Msg("marshal state")
		return
	}
	b.BroadcastOOB(EventState, string(state))
	if b.hub != nil {
		b.hub.Broadcast(wshub.ServerMessage{Type: EventState, Room: state})
	}
	if !ev.PhaseChanged {
		return
	}
	phase, _ := json.Marshal(PhaseChange{From: ev.From, To: ev.View.Phase})
	b.BroadcastOOB(EventPhase, string(phase))
	if b.hub != nil {
		b.hub.Broadcast(wshub.ServerMessage{Type: EventPhase, Phase: string(ev.View.Phase), From: string(ev.From)})
	}
}

// Subscribe returns a channel of events. After the room is gone the channel
// comes back already closed.
func (b *Broadcaster) Subscribe() chan Message {
	ch := make(chan Message, 10)
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.Clients[ch] = true
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Message) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.Clients[ch] {
		delete(b.Clients, ch)
		close(ch)
	}
}

func (b *Broadcaster) BroadcastOOB(event string, message string) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients {
		select {
		case ch <- Message{Event: event, Data: message}:
		default:
			// skip clients with full data channels
		}
	}
}

// Done is closed once the change stream ends and every subscriber has been
// released.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

func (b *Broadcaster) shutdown() {
	b.Mu.Lock()
	b.closed = true
	for ch := range b.Clients {
		delete(b.Clients, ch)
		close(ch)
	}
	b.Mu.Unlock()
	if b.hub != nil {
		b.hub.Close()
	}
	close(b.done)
}

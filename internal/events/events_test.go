package events

import (
	"testing"
	"time"

	"hebrewvocab/internal/gamedata"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("NewBus() returned nil")
	}
	if bus.Changes == nil {
		t.Fatal("Changes channel is nil")
	}
}

func TestBus_SendReceive(t *testing.T) {
	bus := NewBus()
	ev := ChangeEvent{
		View:         gamedata.View{Code: "ABC234", Phase: gamedata.PhaseGame},
		From:         gamedata.PhaseLobby,
		PhaseChanged: true,
	}

	go func() {
		bus.Changes <- ev
	}()

	select {
	case received := <-bus.Changes:
		if received.View.Code != "ABC234" || received.From != gamedata.PhaseLobby || !received.PhaseChanged {
			t.Errorf("received %+v, want %+v", received, ev)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_Buffered(t *testing.T) {
	bus := NewBus()

	// Should be able to send up to 10 without blocking
	for i := 0; i < 10; i++ {
		bus.Changes <- ChangeEvent{}
	}

	// Drain
	for i := 0; i < 10; i++ {
		<-bus.Changes
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	bus.Changes <- ChangeEvent{}
	bus.Close()

	if _, ok := <-bus.Changes; !ok {
		t.Fatal("buffered event should survive Close")
	}
	if _, ok := <-bus.Changes; ok {
		t.Fatal("channel should be closed after draining")
	}
}

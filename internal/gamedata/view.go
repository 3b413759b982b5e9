package gamedata

import "hebrewvocab/internal/words"

// View is what push subscribers and RPC callers receive: the record plus
// the derived phase and the public side of the current word.
type View struct {
	Code  string      `json:"code"`
	Phase Phase       `json:"phase"`
	Room  Room        `json:"room"`
	Word  *words.View `json:"word,omitempty"`
}

func NewView(code string, room Room) View {
	v := View{Code: code, Phase: room.Phase(), Room: room}
	if w, ok := room.CurrentWord(); ok && room.GameStarted {
		wv := w.View(room.CurrentWordIndex)
		v.Word = &wv
	}
	return v
}

package players

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxNameLength = 20

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	IsReady bool   `json:"isReady"`
}

// Roster is the ordered player list of a room. Order is join order and
// index 0 is the host. Methods never modify the receiver; the mutating ones
// return a fresh copy.
type Roster []Player

// NormalizeName trims whitespace and caps the name at MaxNameLength characters.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}

func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	copy(out, r)
	return out
}

func (r Roster) Index(id string) int {
	for i, p := range r {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r Roster) Get(id string) (Player, bool) {
	if i := r.Index(id); i >= 0 {
		return r[i], true
	}
	return Player{}, false
}

func (r Roster) Has(id string) bool {
	return r.Index(id) >= 0
}

// Host is the first player to join.
func (r Roster) Host() (Player, bool) {
	if len(r) == 0 {
		return Player{}, false
	}
	return r[0], true
}

func (r Roster) IsHost(id string) bool {
	h, ok := r.Host()
	return ok && id != "" && h.ID == id
}

// Add appends a new player with no score. Adding an id already present
// returns an unchanged copy.
func (r Roster) Add(id, name string) Roster {
	out := r.Clone()
	if r.Has(id) {
		return out
	}
	return append(out, Player{ID: id, Name: name})
}

func (r Roster) ToggleReady(id string) Roster {
	out := r.Clone()
	if i := out.Index(id); i >= 0 {
		out[i].IsReady = !out[i].IsReady
	}
	return out
}

func (r Roster) AddScore(id string, points int) Roster {
	out := r.Clone()
	if i := out.Index(id); i >= 0 {
		out[i].Score += points
	}
	return out
}

// AllReady is false for an empty roster.
func (r Roster) AllReady() bool {
	if len(r) == 0 {
		return false
	}
	for _, p := range r {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, p := range r {
		ids = append(ids, p.ID)
	}
	return ids
}

// NewID returns a random player token in the browser client's format.
func NewID() string {
	return "player_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

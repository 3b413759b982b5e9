package gamedata

import (
	"encoding/json"
	"strings"
)

// Letters is a sparse sequence aligned with the target word. An empty string
// marks a position that has not been revealed; on the wire it is null.
type Letters []string

func (l Letters) Clone() Letters {
	if l == nil {
		return nil
	}
	out := make(Letters, len(l))
	copy(out, l)
	return out
}

func (l Letters) At(i int) string {
	if i < 0 || i >= len(l) {
		return ""
	}
	return l[i]
}

// Revealed counts the filled positions.
func (l Letters) Revealed() int {
	n := 0
	for _, c := range l {
		if c != "" {
			n++
		}
	}
	return n
}

// Mask renders unrevealed positions as '_' for a word of length n.
func (l Letters) Mask(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if c := l.At(i); c != "" {
			b.WriteString(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (l Letters) MarshalJSON() ([]byte, error) {
	out := make([]*string, len(l))
	for i := range l {
		if l[i] != "" {
			c := l[i]
			out[i] = &c
		}
	}
	return json.Marshal(out)
}

func (l *Letters) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Letters, len(raw))
	for i, c := range raw {
		if c != nil {
			out[i] = *c
		}
	}
	*l = out
	return nil
}

// Package house defines the four houses of the sorting ceremony and the
// per-ceremony score [Tally].
//
// The declaration order of the [House] constants is the tie-break priority:
// when two houses share the top score, the one declared first wins.
package house

import (
	"fmt"
	"strings"
)

// House identifies one of the four fixed houses.
type House int

const (
	Gryffindor House = iota
	Hufflepuff
	Ravenclaw
	Slytherin
)

// Count is the number of houses. A [Tally] always carries exactly Count scores.
const Count = 4

var names = [Count]string{"Gryffindor", "Hufflepuff", "Ravenclaw", "Slytherin"}

// All returns every house in priority order.
func All() []House {
	return []House{Gryffindor, Hufflepuff, Ravenclaw, Slytherin}
}

// String returns the display name of h (e.g. "Gryffindor").
func (h House) String() string {
	if !h.IsValid() {
		return fmt.Sprintf("House(%d)", int(h))
	}
	return names[h]
}

// Key returns the lower-case name of h as it appears in transcripts.
func (h House) Key() string {
	return strings.ToLower(h.String())
}

// IsValid reports whether h is one of the four houses.
func (h House) IsValid() bool {
	return h >= Gryffindor && h <= Slytherin
}

// Parse returns the house whose name equals s, ignoring case and surrounding
// whitespace.
func Parse(s string) (House, error) {
	s = strings.TrimSpace(s)
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return House(i), nil
		}
	}
	return 0, fmt.Errorf("house: unknown house %q", s)
}

// MarshalText implements [encoding.TextMarshaler].
func (h House) MarshalText() ([]byte, error) {
	if !h.IsValid() {
		return nil, fmt.Errorf("house: invalid house %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (h *House) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

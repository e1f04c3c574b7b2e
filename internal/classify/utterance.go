package classify

import (
	"fmt"
	"strings"

	"github.com/MrWong99/sortinghat/internal/house"
)

// NegationMode selects how bare house names inside "not <house>" are counted
// by [Utterance].
type NegationMode string

const (
	// NegationExclusive counts a bare house name only when it is not part of
	// a "not <house>" phrase. "not gryffindor" nets Gryffindor -1.
	NegationExclusive NegationMode = "exclusive"

	// NegationOverlapping also counts the house name inside "not <house>", so
	// "not gryffindor" nets Gryffindor 0.
	NegationOverlapping NegationMode = "overlapping"
)

// IsValid reports whether m is a recognised negation mode.
func (m NegationMode) IsValid() bool {
	return m == NegationExclusive || m == NegationOverlapping
}

// ParseNegationMode parses s; the empty string yields [NegationExclusive].
func ParseNegationMode(s string) (NegationMode, error) {
	if s == "" {
		return NegationExclusive, nil
	}
	m := NegationMode(strings.ToLower(s))
	if !m.IsValid() {
		return "", fmt.Errorf("classify: unknown negation mode %q", s)
	}
	return m, nil
}

// Utterance classifies a free-form utterance in which the student may name
// houses directly. For every house, each "not <house>" subtracts one and each
// bare "<house>" adds one; mode decides whether the name inside a negation
// is also counted as bare. Negative adjustments precede positive ones.
func Utterance(text string, mode NegationMode) []house.Adjustment {
	lower := strings.ToLower(text)
	var adjs []house.Adjustment
	for _, h := range house.All() {
		negated := strings.Count(lower, "not "+h.Key())
		bare := strings.Count(lower, h.Key())
		if mode != NegationOverlapping {
			bare -= negated
		}
		if negated > 0 {
			adjs = append(adjs, house.Adjustment{House: h, Delta: -negated})
		}
		if bare > 0 {
			adjs = append(adjs, house.Adjustment{House: h, Delta: bare})
		}
	}
	return adjs
}

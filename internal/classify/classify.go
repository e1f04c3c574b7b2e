// Package classify maps free-text answers to house score adjustments.
//
// Every classifier is a pure function over a transcript. The keyword tables
// are fixed; matching is case-insensitive and operates on whole words, except
// where noted.
package classify

import (
	"strings"
	"unicode"

	"github.com/MrWong99/sortinghat/internal/house"
)

// Words lower-cases s and splits it into words, trimming leading and trailing
// punctuation from each. Internal hyphens and apostrophes are kept, so
// "Hard-working," yields "hard-working".
func Words(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	words := fields[:0]
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#'
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// LastWord returns the final word of s as produced by [Words], or "" when s
// contains no words.
func LastWord(s string) string {
	w := Words(s)
	if len(w) == 0 {
		return ""
	}
	return w[len(w)-1]
}

// FirstWord returns the first word of s as produced by [Words], or "".
func FirstWord(s string) string {
	w := Words(s)
	if len(w) == 0 {
		return ""
	}
	return w[0]
}

// IsYes reports whether the first word of answer is "yes".
func IsYes(answer string) bool {
	return FirstWord(answer) == "yes"
}

func plusOne(h house.House) []house.Adjustment {
	return []house.Adjustment{{House: h, Delta: 1}}
}

// Vocabulary returns the keywords a misheard transcript is worth repairing
// towards: the house names and the pets.
func Vocabulary() []string {
	v := make([]string, 0, house.Count+len(Pets))
	for _, h := range house.All() {
		v = append(v, h.Key())
	}
	return append(v, Pets...)
}

// Package phonetic snaps misheard keywords in a transcript back onto a fixed
// vocabulary using Double Metaphone encoding combined with Jaro-Winkler
// similarity.
//
// Speech recognisers rarely know invented words: "Gryffindor" comes back as
// "griffin door", "Slytherin" as "slither in". [Matcher.Repair] walks the
// transcript, tries each adjacent word pair and then each single word against
// the vocabulary, and substitutes the best candidate when it clears a
// threshold:
//
//  1. Phonetic candidates: any Double Metaphone code of the input (per token
//     or of the tokens run together) equals a code of the vocabulary word.
//     These are accepted at the phonetic threshold (default 0.70).
//
//  2. Fuzzy candidates: with no phonetic overlap, pure Jaro-Winkler
//     similarity must clear the higher fuzzy threshold (default 0.85).
//
// Words that already are vocabulary words are never rewritten or merged.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minWordLen keeps short function words ("a", "in", "the") out of
	// single-word repair.
	minWordLen = 4

	// maxLenDelta bounds the length difference between the input run and
	// the vocabulary word.
	maxLenDelta = 2
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// term is a vocabulary word with its precomputed codes.
type term struct {
	word  string
	codes map[string]struct{}
}

// Matcher repairs transcripts against a fixed vocabulary. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	vocab             []term
	known             map[string]struct{}
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] for vocabulary. Vocabulary words are compared
// case-insensitively and returned in lower case.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		known:             make(map[string]struct{}, len(vocabulary)),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, w := range vocabulary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := m.known[w]; dup {
			continue
		}
		m.known[w] = struct{}{}
		m.vocab = append(m.vocab, term{word: w, codes: codesFor([]string{w})})
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary word most similar to phrase, which may be one
// word or several that should have been one. When matched is false,
// corrected equals phrase unchanged and confidence is 0.
func (m *Matcher) Match(phrase string) (corrected string, confidence float64, matched bool) {
	tokens := strings.Fields(strings.ToLower(phrase))
	if len(tokens) == 0 || len(m.vocab) == 0 {
		return phrase, 0, false
	}
	joined := strings.Join(tokens, "")
	input := codesFor(tokens)

	var (
		best     string
		score    float64
		phonetic bool
	)
	for _, t := range m.vocab {
		if abs(len(joined)-len(t.word)) > maxLenDelta {
			continue
		}
		jw := matchr.JaroWinkler(joined, t.word, false)
		if overlaps(input, t.codes) {
			if jw >= m.phoneticThreshold && (!phonetic || jw > score) {
				best, score, phonetic = t.word, jw, true
			}
			continue
		}
		if !phonetic && jw >= m.fuzzyThreshold && jw > score {
			best, score = t.word, jw
		}
	}
	if best == "" {
		return phrase, 0, false
	}
	return best, score, true
}

// Repair returns text with misheard vocabulary words replaced. Word pairs are
// tried before single words so "huffle puff" collapses into one keyword.
// Unmatched words keep their original spelling.
func (m *Matcher) Repair(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		if m.isKnown(words[i]) {
			out = append(out, words[i])
			continue
		}
		if i+1 < len(words) && !m.isKnown(words[i+1]) {
			if w, _, ok := m.Match(words[i] + " " + words[i+1]); ok {
				out = append(out, w)
				i++
				continue
			}
		}
		if len(words[i]) >= minWordLen {
			if w, _, ok := m.Match(words[i]); ok {
				out = append(out, w)
				continue
			}
		}
		out = append(out, words[i])
	}
	return strings.Join(out, " ")
}

func (m *Matcher) isKnown(w string) bool {
	_, ok := m.known[strings.ToLower(w)]
	return ok
}

// codesFor returns the Double Metaphone codes of each token and of the tokens
// run together. Empty codes are excluded.
func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2+2)
	add := func(s string) {
		p, sec := matchr.DoubleMetaphone(s)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	for _, t := range tokens {
		add(t)
	}
	if len(tokens) > 1 {
		add(strings.Join(tokens, ""))
	}
	return codes
}

// overlaps reports whether the two code sets share at least one code.
func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

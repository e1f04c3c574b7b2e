package house

// Adjustment is a signed score change for a single house, as produced by the
// keyword classifiers.
type Adjustment struct {
	House House
	Delta int
}

// Tally accumulates scores for the four houses during one ceremony. The zero
// value is a tally with every house at zero and is ready to use.
//
// A Tally is not safe for concurrent use; a ceremony is strictly sequential.
type Tally struct {
	scores [Count]int
}

// Adjust adds delta to the score of h. Invalid houses are ignored.
func (t *Tally) Adjust(h House, delta int) {
	if !h.IsValid() {
		return
	}
	t.scores[h] += delta
}

// Apply adds every adjustment in order.
func (t *Tally) Apply(adjs ...Adjustment) {
	for _, a := range adjs {
		t.Adjust(a.House, a.Delta)
	}
}

// Score returns the current score of h.
func (t *Tally) Score(h House) int {
	if !h.IsValid() {
		return 0
	}
	return t.scores[h]
}

// Scores returns a copy of all four scores, indexed by House.
func (t *Tally) Scores() [Count]int {
	return t.scores
}

// Reset sets every score back to zero.
func (t *Tally) Reset() {
	t.scores = [Count]int{}
}

// Winner returns the house with the greatest score. Ties resolve to the house
// declared first (Gryffindor, then Hufflepuff, then Ravenclaw, then Slytherin),
// so an all-zero tally yields Gryffindor.
func (t *Tally) Winner() House {
	best := Gryffindor
	for _, h := range All()[1:] {
		if t.scores[h] > t.scores[best] {
			best = h
		}
	}
	return best
}

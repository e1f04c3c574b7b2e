package classify

import (
	"slices"

	"github.com/MrWong99/sortinghat/internal/house"
)

// adjectives is checked in house priority order; a word listed for two houses
// counts only for the first ("sad" is Hufflepuff).
var adjectives = [house.Count][]string{
	house.Gryffindor: {"brave", "daring", "funny", "adventurous", "happy", "fearless", "nervous", "kind", "proud", "silly"},
	house.Hufflepuff: {"hardworking", "hard-working", "loyal", "nice", "patient", "friendly", "calm", "sad", "honest", "generous", "helpful"},
	house.Ravenclaw:  {"smart", "creative", "imaginative", "perceptive", "thoughtful", "peaceful", "interesting", "curious", "innovative"},
	house.Slytherin:  {"ambitious", "determined", "sneaky", "careful", "shy", "clever", "shrewd", "sad", "persistent", "focused", "frustrated", "evil"},
}

// Adjectives classifies each word of answer independently and returns one +1
// adjustment per recognised adjective. Unknown words contribute nothing.
func Adjectives(answer string) []house.Adjustment {
	var adjs []house.Adjustment
	for _, w := range Words(answer) {
		if h, ok := adjectiveHouse(w); ok {
			adjs = append(adjs, house.Adjustment{House: h, Delta: 1})
		}
	}
	return adjs
}

func adjectiveHouse(word string) (house.House, bool) {
	for _, h := range house.All() {
		if slices.Contains(adjectives[h], word) {
			return h, true
		}
	}
	return 0, false
}

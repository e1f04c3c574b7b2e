package classify

import (
	"slices"

	"github.com/MrWong99/sortinghat/internal/house"
)

// Pets lists the pets a student may bring, in the order their pictures are
// shown.
var Pets = []string{"cat", "owl", "rat", "toad"}

// FindPet returns the first word of phrase that names one of [Pets].
func FindPet(phrase string) (string, bool) {
	for _, w := range Words(phrase) {
		if slices.Contains(Pets, w) {
			return w, true
		}
	}
	return "", false
}

// Pet classifies a pet choice: toad is Hufflepuff, owl is Ravenclaw, rat is
// Slytherin, and anything else (a cat included) is Gryffindor.
func Pet(pet string) []house.Adjustment {
	switch FirstWord(pet) {
	case "toad":
		return plusOne(house.Hufflepuff)
	case "owl":
		return plusOne(house.Ravenclaw)
	case "rat":
		return plusOne(house.Slytherin)
	default:
		return plusOne(house.Gryffindor)
	}
}

package classify

import (
	"slices"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/MrWong99/sortinghat/internal/house"
)

var (
	hufflepuffColors = []string{"yellow", "gold"}
	ravenclawColors  = []string{"blue"}
	slytherinColors  = []string{"teal", "silver", "green", "gray", "grey"}
	gryffindorColors = []string{
		"red", "scarlet", "maroon", "crimson", "ruby", "burgundy", "pink", "rose",
		"magenta", "violet", "purple", "lavender", "indigo", "blue", "teal",
		"turquoise", "green", "olive", "lime", "chartreuse", "gold", "orange",
	}
)

// Color classifies a favourite colour. The lists are checked in the fixed
// order Hufflepuff, Ravenclaw, Slytherin, Gryffindor and the first match
// awards +1; an unknown colour yields no adjustment. Slytherin additionally
// claims any colour containing "aqua".
func Color(answer string) []house.Adjustment {
	c := strings.ToLower(strings.TrimSpace(answer))
	switch {
	case c == "":
		return nil
	case slices.Contains(hufflepuffColors, c):
		return plusOne(house.Hufflepuff)
	case slices.Contains(ravenclawColors, c):
		return plusOne(house.Ravenclaw)
	case slices.Contains(slytherinColors, c), strings.Contains(c, "aqua"):
		return plusOne(house.Slytherin)
	case slices.Contains(gryffindorColors, c):
		return plusOne(house.Gryffindor)
	}
	return nil
}

// IsColor reports whether answer names a plausible colour: a CSS/SVG colour
// name (spaces ignored, so "sky blue" is accepted) or a #rgb / #rrggbb hex
// value.
func IsColor(answer string) bool {
	c := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(answer), " ", ""))
	if c == "" {
		return false
	}
	if _, ok := colornames.Map[c]; ok {
		return true
	}
	return isHex(c)
}

func isHex(c string) bool {
	if !strings.HasPrefix(c, "#") {
		return false
	}
	digits := c[1:]
	if len(digits) != 3 && len(digits) != 6 {
		return false
	}
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

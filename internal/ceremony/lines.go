package ceremony

import (
	"fmt"
	"strings"
)

// DefaultOccasion completes the welcome line when no occasion is configured.
const DefaultOccasion = "the Great Hall"

const (
	lineShortly      = "Your sorting ceremony, where you will be placed into a house, will begin shortly."
	lineHistory      = "Each house has its own noble history, and each has produced outstanding witches and wizards."
	lineOneWord      = "Try to stick to one-word responses unless I specify otherwise."
	lineGreenListens = "Also note that I will only be able to hear you when the background is green!"

	lineAskName    = "Now...state your name!"
	lineRetryName  = "I'm sorry; I didn't catch that. Could you please state your name again?"
	lineGiveUpName = "I'm sorry, but I couldn't catch your name. Let's try again later."

	lineAskRedo = "Or would you rather try the sorting ceremony again?"

	lineBegin = "Let us begin the sorting ceremony! The first bit of information I'd like to know:"

	lineAskColor    = "What is your favorite color?"
	lineGiveUpColor = "...I couldn't understand your favorite color."
	lineAbort       = "I'm sorry, but we couldn't complete the sorting ceremony. Let's try again another time."
	lineMoveAlong   = "Let's move along."

	lineAskPet    = "Hogwarts allows students to care for a small pet, teaching companionship and responsibility. If you were given a choice of the following creatures, which would strike your fancy? Cat, toad, rat, or owl."
	lineRetryPet  = "I'm sorry, I didn't catch that. Please choose either a cat, toad, rat, or owl."
	lineGiveUpPet = "No matter. A pet can be chosen later."
	lineFinalQ    = "And now on to our final question."

	lineAskAdjectives   = "A Hogwarts student should always be able to describe themselves well.  List adjectives that describe you."
	lineRetryAdjectives = "I'm sorry, I didn't catch that. Could you please try again?"

	lineMoments = "Give me a few moments to sort you into a house."
	lineWhisper = "Feel free to take a deep breath or to whisper something the way Harry Potter famously did."
)

func lineWelcome(occasion string) string {
	if occasion == "" {
		occasion = DefaultOccasion
	}
	return fmt.Sprintf("Hogwarts School of Witchcraft and Wizardry would like to welcome you to %s!", occasion)
}

func lineGreetNew(name string) string {
	return fmt.Sprintf("Right! Hello there, %s, nice to meet you!", name)
}

func lineAskReplay(name, house string) string {
	return fmt.Sprintf("Hello again, %s! I've already sorted you into a house: %s! Would you like me to announce it again?", name, house)
}

func lineFarewell(name string) string {
	return fmt.Sprintf("Very well, %s. Until next time!", name)
}

func lineRetryColor(heard string) string {
	if heard == "" {
		return "I'm sorry, but I didn't hear a color. Please try again with a different color."
	}
	return fmt.Sprintf("I'm sorry, but %s doesn't seem to be a valid color. Please try again with a different color.", heard)
}

func lineColorChosen(color string) string {
	return fmt.Sprintf("Ah yes...%s!  An excellent color!", color)
}

func linePetChosen(pet string) string {
	return fmt.Sprintf("Ah yes...the %s! A wonderful creature!", pet)
}

func lineAdjectivesEcho(words []string) string {
	return fmt.Sprintf("Ah yes...you do seem like a very %s person. Interesting...", strings.Join(words, ", "))
}

func lineHouse(house string) string {
	return strings.ToUpper(house) + "!"
}

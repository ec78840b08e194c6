package game

import (
	"math/rand"
)

// ShoeDecks is the number of standard decks shuffled into a fresh shoe.
// The shoe is rebuilt at the start of every round, so no card-counting
// state survives across rounds.
const ShoeDecks = 4

// NewShoe builds a freshly shuffled shoe of ShoeDecks standard decks
// using the provided random source.
func NewShoe(rng *rand.Rand) []Card {
	cards := make([]Card, 0, ShoeDecks*52)
	for d := 0; d < ShoeDecks; d++ {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				cards = append(cards, Card{Suit: suit, Rank: rank})
			}
		}
	}

	// Fisher-Yates shuffle
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}

	return cards
}

// Draw removes and returns the top card of the shoe. The boolean is false
// if the shoe is empty; with a four-deck shoe rebuilt every round this
// only happens with a corrupted document.
func Draw(shoe []Card) (Card, []Card, bool) {
	if len(shoe) == 0 {
		return Card{}, shoe, false
	}
	return shoe[0], shoe[1:], true
}

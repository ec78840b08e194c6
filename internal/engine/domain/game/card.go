package game

// Card represents a single playing card
type Card struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

// Suits and ranks of a standard 52-card deck
var (
	Suits = []string{"♠", "♥", "♦", "♣"}
	Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// Value returns the blackjack value of the card. Aces count as 11 here;
// demotion to 1 happens during hand valuation.
func (c Card) Value() int {
	switch c.Rank {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	case "7":
		return 7
	case "8":
		return 8
	case "9":
		return 9
	default:
		return 0
	}
}

// IsAce reports whether the card is an ace
func (c Card) IsAce() bool {
	return c.Rank == "A"
}

// IsTenValue reports whether the card counts as ten (10, J, Q, K)
func (c Card) IsTenValue() bool {
	return c.Value() == 10
}

func (c Card) String() string {
	return c.Rank + c.Suit
}

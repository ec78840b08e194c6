package game

// HandValue computes the best blackjack total for a set of cards. All aces
// are first counted as 11, then demoted to 1 one at a time while the total
// is over 21. The second return is true if the final total is soft, i.e.
// at least one ace is still counted as 11.
func HandValue(cards []Card) (int, bool) {
	total := 0
	aces := 0
	for _, c := range cards {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}

	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}

	return total, aces > 0
}

// IsBlackjack reports whether the cards are a natural blackjack: exactly
// two cards totalling 21 (an ace plus a ten-value card).
func IsBlackjack(cards []Card) bool {
	if len(cards) != 2 {
		return false
	}
	total, _ := HandValue(cards)
	return total == 21
}

// IsBust reports whether the cards total over 21
func IsBust(cards []Card) bool {
	total, _ := HandValue(cards)
	return total > 21
}

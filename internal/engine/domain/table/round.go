package table

import (
	"fmt"

	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
)

// Deal starts a round from a fresh shoe. Two round-robin passes: each
// wagering player receives one card, then the dealer, the dealer's second
// card face down. Naturals are flagged immediately; if the dealer's up
// card could make blackjack the hole card is peeked, and a dealer natural
// settles the round on the spot.
func (t *Table) Deal(shoe []game.Card) error {
	if t.Phase != PhaseBetting {
		return fmt.Errorf("%w: table is %s", ErrWrongPhase, t.Phase)
	}
	if !t.HasBets() {
		return fmt.Errorf("%w: no bets placed", ErrIllegalAction)
	}
	t.SitOutNonBettors()

	t.Phase = PhaseDealing
	t.Shoe = shoe
	t.RoundID++
	t.DealerHand = nil
	t.DealerHoleShown = false

	var active []*Player
	for _, p := range t.Players {
		if p.Status == StatusBetting && p.CurrentBet > 0 {
			p.Hands = []*Hand{{Bet: p.CurrentBet, State: HandActive}}
			p.Status = StatusPlaying
			active = append(active, p)
		}
	}

	for pass := 0; pass < 2; pass++ {
		for _, p := range active {
			p.Hands[0].Cards = append(p.Hands[0].Cards, t.draw())
		}
		t.DealerHand = append(t.DealerHand, t.draw())
	}

	for _, p := range active {
		if game.IsBlackjack(p.Hands[0].Cards) {
			p.Hands[0].State = HandBlackjack
			p.Status = StatusStanding
		}
	}

	up := t.DealerHand[0]
	if (up.IsAce() || up.IsTenValue()) && game.IsBlackjack(t.DealerHand) {
		t.DealerHoleShown = true
		t.settle(true)
		return nil
	}

	next := t.nextTurn(0)
	if next == -1 {
		// Every hand is a natural; nothing left to play
		t.FinishRound()
		return nil
	}

	t.Phase = PhasePlayerTurns
	t.ActivePlayerIndex = next
	return nil
}

// FinishRound reveals the hole card, plays out the dealer and settles.
// The dealer hits below 17 and stands on any 17, soft or hard. The dealer
// only draws when a live hand remains to be beaten.
func (t *Table) FinishRound() {
	t.Phase = PhaseDealerTurn
	t.DealerHoleShown = true

	if t.hasLiveHands() {
		for len(t.Shoe) > 0 {
			total, _ := game.HandValue(t.DealerHand)
			if total >= 17 {
				break
			}
			t.DealerHand = append(t.DealerHand, t.draw())
		}
	}

	t.settle(false)
}

// settle pays out every hand against the dealer and rolls the table into
// the next round. Bust losses are final at the moment of bust: a busted
// hand is never re-evaluated against a busted dealer. Chip credits happen
// here, in the same document write as the phase change.
func (t *Table) settle(dealerBlackjack bool) {
	t.Phase = PhasePayout

	dealerTotal, _ := game.HandValue(t.DealerHand)
	dealerBust := dealerTotal > 21

	for _, p := range t.Players {
		for _, h := range p.Hands {
			switch h.State {
			case HandSurrendered:
				// Half the bet was returned when the hand closed
			case HandBusted:
				// Stake forfeited at bust time
			case HandBlackjack:
				if dealerBlackjack {
					p.Chips += h.Bet // push
				} else {
					p.Chips += h.Bet + h.Bet*3/2 // pays 3:2
				}
			default:
				if dealerBlackjack {
					break // stake lost
				}
				total, _ := game.HandValue(h.Cards)
				if dealerBust || total > dealerTotal {
					p.Chips += h.Bet * 2
				} else if total == dealerTotal {
					p.Chips += h.Bet // push
				}
			}
		}
	}

	t.prepareNextRound()
}

// prepareNextRound clears round state and loops back to betting, or
// waiting if nobody can cover the minimum bet.
func (t *Table) prepareNextRound() {
	t.resetRound()

	funded := false
	for _, p := range t.Players {
		if p.Chips >= t.MinBet {
			funded = true
			break
		}
	}

	if funded {
		t.enterBetting()
		return
	}

	t.Phase = PhaseWaiting
	for _, p := range t.Players {
		if p.Chips > 0 {
			p.Status = StatusSeated
		} else {
			p.Status = StatusSittingOut
		}
	}
}

// nextTurn returns the first seat at or after start holding an undecided
// hand, or -1. Turn order never wraps: seats before start are done.
func (t *Table) nextTurn(start int) int {
	for i := start; i < len(t.Players); i++ {
		if h, _ := t.Players[i].ActiveHand(); h != nil {
			return i
		}
	}
	return -1
}

// hasLiveHands reports whether any hand still contests the dealer
func (t *Table) hasLiveHands() bool {
	for _, p := range t.Players {
		for _, h := range p.Hands {
			if h.State == HandStood || h.State == HandDoubled {
				return true
			}
		}
	}
	return false
}

// draw takes the top card of the table's shoe
func (t *Table) draw() game.Card {
	c, rest, _ := game.Draw(t.Shoe)
	t.Shoe = rest
	return c
}

// ActiveHand returns the player's first undecided hand and its index,
// or (nil, -1)
func (p *Player) ActiveHand() (*Hand, int) {
	for i, h := range p.Hands {
		if h.State == HandActive {
			return h, i
		}
	}
	return nil, -1
}

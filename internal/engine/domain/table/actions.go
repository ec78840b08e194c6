package table

import (
	"fmt"

	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
	"github.com/google/uuid"
)

// Action is a player decision during their turn
type Action string

const (
	ActionHit       Action = "hit"
	ActionStand     Action = "stand"
	ActionDouble    Action = "double"
	ActionSplit     Action = "split"
	ActionSurrender Action = "surrender"
)

// Valid reports whether the action is one the engine knows
func (a Action) Valid() bool {
	switch a {
	case ActionHit, ActionStand, ActionDouble, ActionSplit, ActionSurrender:
		return true
	}
	return false
}

// Apply plays one action on the acting player's current hand. Actions
// always target the first undecided hand in order, so a split's first
// half finishes before its second begins. When the action decides the
// hand, the turn advances; when no undecided hand remains anywhere, the
// dealer plays and the round settles in the same transition.
func (t *Table) Apply(userID uuid.UUID, action Action) error {
	if t.Phase != PhasePlayerTurns {
		return fmt.Errorf("%w: table is %s", ErrWrongPhase, t.Phase)
	}
	if t.ActivePlayerIndex < 0 || t.ActivePlayerIndex >= len(t.Players) {
		return fmt.Errorf("%w: no active seat", ErrWrongPhase)
	}

	p := t.Players[t.ActivePlayerIndex]
	if p.UserID != userID {
		if t.GetPlayer(userID) == nil {
			return ErrPlayerNotFound
		}
		return ErrNotYourTurn
	}

	h, _ := p.ActiveHand()
	if h == nil {
		return fmt.Errorf("%w: no undecided hand", ErrIllegalAction)
	}

	switch action {
	case ActionHit:
		h.Cards = append(h.Cards, t.draw())
		if game.IsBust(h.Cards) {
			h.State = HandBusted
		}

	case ActionStand:
		h.State = HandStood

	case ActionDouble:
		if len(h.Cards) != 2 {
			return fmt.Errorf("%w: double only as first decision on two cards", ErrIllegalAction)
		}
		if p.Chips < h.Bet {
			return fmt.Errorf("%w: insufficient chips to double", ErrIllegalAction)
		}
		p.Chips -= h.Bet
		p.CurrentBet += h.Bet
		h.Bet *= 2
		h.Cards = append(h.Cards, t.draw())
		if game.IsBust(h.Cards) {
			h.State = HandBusted
		} else {
			h.State = HandDoubled
		}

	case ActionSplit:
		if len(p.Hands) != 1 {
			return fmt.Errorf("%w: hand already split", ErrIllegalAction)
		}
		if len(h.Cards) != 2 || h.Cards[0].Value() != h.Cards[1].Value() {
			return fmt.Errorf("%w: split requires two cards of equal value", ErrIllegalAction)
		}
		if p.Chips < h.Bet {
			return fmt.Errorf("%w: insufficient chips to split", ErrIllegalAction)
		}
		p.Chips -= h.Bet
		p.CurrentBet += h.Bet
		first := &Hand{Cards: []game.Card{h.Cards[0]}, Bet: h.Bet, State: HandActive}
		second := &Hand{Cards: []game.Card{h.Cards[1]}, Bet: h.Bet, State: HandActive}
		first.Cards = append(first.Cards, t.draw())
		second.Cards = append(second.Cards, t.draw())
		p.Hands = []*Hand{first, second}

	case ActionSurrender:
		if len(p.Hands) != 1 || len(h.Cards) != 2 {
			return fmt.Errorf("%w: surrender only as first decision", ErrIllegalAction)
		}
		p.Chips += h.Bet / 2
		h.State = HandSurrendered

	default:
		return fmt.Errorf("%w: unknown action %q", ErrIllegalAction, action)
	}

	t.advanceTurn()
	return nil
}

// advanceTurn moves play to the next undecided hand: first within the
// current player's hands, then down the seat order. When nothing is left
// the round finishes.
func (t *Table) advanceTurn() {
	p := t.Players[t.ActivePlayerIndex]
	if h, _ := p.ActiveHand(); h != nil {
		return
	}

	p.Status = StatusStanding
	if p.allHandsBusted() {
		p.Status = StatusBusted
	}

	next := t.nextTurn(t.ActivePlayerIndex + 1)
	if next == -1 {
		t.FinishRound()
		return
	}
	t.ActivePlayerIndex = next
}

func (p *Player) allHandsBusted() bool {
	for _, h := range p.Hands {
		if h.State != HandBusted {
			return false
		}
	}
	return len(p.Hands) > 0
}

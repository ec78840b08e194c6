package table

import (
	"time"

	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
	"github.com/google/uuid"
)

// View is the table as broadcast to viewers. The shoe never leaves the
// server, and the dealer's hole card is withheld until revealed.
type View struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Phase             Phase       `json:"phase"`
	MinBet            int64       `json:"min_bet"`
	MaxBet            int64       `json:"max_bet"`
	MaxPlayers        int         `json:"max_players"`
	Players           []*Player   `json:"players"`
	DealerHand        []game.Card `json:"dealer_hand"`
	DealerHoleShown   bool        `json:"dealer_hole_shown"`
	ActivePlayerIndex int         `json:"active_player_index"`
	RoundID           int64       `json:"round_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// View returns the broadcast form of the table
func (t *Table) View() View {
	dealer := t.DealerHand
	if !t.DealerHoleShown && len(dealer) > 1 {
		dealer = dealer[:1]
	}

	return View{
		ID:                t.ID,
		Name:              t.Name,
		Phase:             t.Phase,
		MinBet:            t.MinBet,
		MaxBet:            t.MaxBet,
		MaxPlayers:        t.MaxPlayers,
		Players:           t.Players,
		DealerHand:        dealer,
		DealerHoleShown:   t.DealerHoleShown,
		ActivePlayerIndex: t.ActivePlayerIndex,
		RoundID:           t.RoundID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

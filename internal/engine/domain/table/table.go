package table

import (
	"fmt"
	"time"

	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
	"github.com/google/uuid"
)

// Phase represents the current stage of a table's round cycle
type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseBetting     Phase = "betting"
	PhaseDealing     Phase = "dealing"
	PhasePlayerTurns Phase = "playerTurns"
	PhaseDealerTurn  Phase = "dealerTurn"
	PhasePayout      Phase = "payout"
)

// PlayerStatus represents a seated player's state within the round
type PlayerStatus string

const (
	StatusSeated     PlayerStatus = "seated"
	StatusBetting    PlayerStatus = "betting"
	StatusPlaying    PlayerStatus = "playing"
	StatusStanding   PlayerStatus = "standing"
	StatusBusted     PlayerStatus = "busted"
	StatusSittingOut PlayerStatus = "sittingOut"
)

// HandState represents the resolution state of a single hand
type HandState string

const (
	HandActive      HandState = "active"
	HandStood       HandState = "stood"
	HandBusted      HandState = "busted"
	HandBlackjack   HandState = "blackjack"
	HandDoubled     HandState = "doubled"
	HandSurrendered HandState = "surrendered"
)

// Fixed table configuration
const (
	DefaultMinBet     int64 = 10
	DefaultMaxBet     int64 = 500
	DefaultMaxPlayers       = 6
	StartingChips     int64 = 1000
	MaxNameLength           = 50
)

// Table is the aggregate root: one document per table. It is a plain value
// passed through transition methods; the store layer handles versioning and
// the compare-and-swap write.
type Table struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Phase           Phase       `json:"phase"`
	MinBet          int64       `json:"min_bet"`
	MaxBet          int64       `json:"max_bet"`
	MaxPlayers      int         `json:"max_players"`
	Players         []*Player   `json:"players"`
	DealerHand      []game.Card `json:"dealer_hand"`
	DealerHoleShown bool        `json:"dealer_hole_shown"`
	Shoe            []game.Card `json:"shoe"`

	// ActivePlayerIndex is the seat whose turn it is during playerTurns,
	// -1 in every other phase.
	ActivePlayerIndex int `json:"active_player_index"`

	RoundID   int64     `json:"round_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Player is one seat at the table. Seat order is turn order.
type Player struct {
	UserID      uuid.UUID    `json:"user_id"`
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	Chips       int64        `json:"chips"`
	Hands       []*Hand      `json:"hands"`
	CurrentBet  int64        `json:"current_bet"`
	Status      PlayerStatus `json:"status"`
}

// Hand is one hand of cards with its own wager. A player normally has one,
// two after a split.
type Hand struct {
	Cards []game.Card `json:"cards"`
	Bet   int64       `json:"bet"`
	State HandState   `json:"state"`
}

// NewTable creates a waiting table with the creator as sole seated player.
// An empty name defaults to "<creator>'s Table".
func NewTable(creatorID uuid.UUID, displayName, avatarURL, name string) (*Table, error) {
	if name == "" {
		name = displayName + "'s Table"
	}
	if len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: table name exceeds %d characters", ErrValidation, MaxNameLength)
	}

	now := time.Now().UTC()
	return &Table{
		ID:         uuid.New(),
		Name:       name,
		Phase:      PhaseWaiting,
		MinBet:     DefaultMinBet,
		MaxBet:     DefaultMaxBet,
		MaxPlayers: DefaultMaxPlayers,
		Players: []*Player{{
			UserID:      creatorID,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
			Chips:       StartingChips,
			Status:      StatusSeated,
		}},
		ActivePlayerIndex: -1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// GetPlayer returns the seated player with the given user id, or nil
func (t *Table) GetPlayer(userID uuid.UUID) *Player {
	for _, p := range t.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// IsFull returns true if every seat is taken
func (t *Table) IsFull() bool {
	return len(t.Players) >= t.MaxPlayers
}

// AddPlayer seats a new player with the default chip stack
func (t *Table) AddPlayer(userID uuid.UUID, displayName, avatarURL string) error {
	if t.IsFull() {
		return ErrTableFull
	}
	if t.GetPlayer(userID) != nil {
		return ErrAlreadySeated
	}

	status := StatusSeated
	if t.Phase != PhaseWaiting {
		// Joining mid-round: sit out until the next betting phase
		status = StatusSittingOut
	}

	t.Players = append(t.Players, &Player{
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Chips:       StartingChips,
		Status:      status,
	})
	return nil
}

// RemovePlayer unseats a player. A live wager is forfeited, not refunded,
// so leaving cannot be used to dodge a loss. If the departing player held
// the turn, the turn advances; if no undecided hands remain the round is
// finished on the spot.
func (t *Table) RemovePlayer(userID uuid.UUID) error {
	idx := -1
	for i, p := range t.Players {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrPlayerNotFound
	}

	wasActive := t.Phase == PhasePlayerTurns && idx == t.ActivePlayerIndex
	t.Players = append(t.Players[:idx], t.Players[idx+1:]...)

	if len(t.Players) == 0 {
		t.resetRound()
		t.DealerHand = nil
		t.DealerHoleShown = false
		t.Phase = PhaseWaiting
		return nil
	}

	if t.Phase == PhasePlayerTurns {
		if idx < t.ActivePlayerIndex {
			t.ActivePlayerIndex--
		} else if wasActive {
			// Slice shifted: idx now names the next seat in order
			next := t.nextTurn(idx)
			if next == -1 {
				t.FinishRound()
			} else {
				t.ActivePlayerIndex = next
				t.Players[next].Status = StatusPlaying
			}
		}
	}

	return nil
}

// StartBetting moves a waiting table into the betting phase. Any seated
// player may trigger it, provided someone can afford a bet.
func (t *Table) StartBetting(userID uuid.UUID) error {
	if t.Phase != PhaseWaiting {
		return fmt.Errorf("%w: table is %s", ErrWrongPhase, t.Phase)
	}
	if t.GetPlayer(userID) == nil {
		return ErrPlayerNotFound
	}

	funded := false
	for _, p := range t.Players {
		if p.Chips >= t.MinBet {
			funded = true
			break
		}
	}
	if !funded {
		return fmt.Errorf("%w: no player can cover the minimum bet", ErrIllegalAction)
	}

	t.enterBetting()
	return nil
}

// PlaceBet records a player's wager for the round. The stake moves out of
// the chip stack immediately; settlement returns it on a win or push.
func (t *Table) PlaceBet(userID uuid.UUID, amount int64) error {
	if t.Phase != PhaseBetting {
		return fmt.Errorf("%w: table is %s", ErrWrongPhase, t.Phase)
	}

	p := t.GetPlayer(userID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if p.Status != StatusBetting {
		return fmt.Errorf("%w: player is sitting out this round", ErrIllegalAction)
	}
	if p.CurrentBet > 0 {
		return fmt.Errorf("%w: bet already placed", ErrIllegalAction)
	}

	max := t.MaxBet
	if p.Chips < max {
		max = p.Chips
	}
	if amount < t.MinBet || amount > max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidBet, amount, t.MinBet, max)
	}

	p.Chips -= amount
	p.CurrentBet = amount
	return nil
}

// AllBetsIn reports whether every player still in the betting phase has a
// wager down, and at least one bet exists.
func (t *Table) AllBetsIn() bool {
	any := false
	for _, p := range t.Players {
		if p.Status != StatusBetting {
			continue
		}
		if p.CurrentBet == 0 {
			return false
		}
		any = true
	}
	return any
}

// SitOutNonBettors marks betting players without a wager as sitting out.
// This is the administrative force-advance out of a stalled betting phase;
// sat-out players keep their chips.
func (t *Table) SitOutNonBettors() {
	for _, p := range t.Players {
		if p.Status == StatusBetting && p.CurrentBet == 0 {
			p.Status = StatusSittingOut
		}
	}
}

// HasBets reports whether any player has a live wager
func (t *Table) HasBets() bool {
	for _, p := range t.Players {
		if p.CurrentBet > 0 {
			return true
		}
	}
	return false
}

// enterBetting begins a betting phase, marking who may wager this round
func (t *Table) enterBetting() {
	t.Phase = PhaseBetting
	for _, p := range t.Players {
		if p.Chips >= t.MinBet {
			p.Status = StatusBetting
		} else {
			p.Status = StatusSittingOut
		}
	}
}

// resetRound clears per-round state. The dealer's revealed hand is kept
// so the settled round stays visible until the next deal re-initializes
// it.
func (t *Table) resetRound() {
	t.Shoe = nil
	t.ActivePlayerIndex = -1
	for _, p := range t.Players {
		p.Hands = nil
		p.CurrentBet = 0
	}
}

// Summary is the lobby view of a table
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Phase       Phase     `json:"phase"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	MinBet      int64     `json:"min_bet"`
	MaxBet      int64     `json:"max_bet"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summarize returns the lobby view of the table
func (t *Table) Summarize() Summary {
	return Summary{
		ID:          t.ID,
		Name:        t.Name,
		Phase:       t.Phase,
		PlayerCount: len(t.Players),
		MaxPlayers:  t.MaxPlayers,
		MinBet:      t.MinBet,
		MaxBet:      t.MaxBet,
		UpdatedAt:   t.UpdatedAt,
	}
}

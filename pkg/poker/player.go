package poker

import (
	"strings"
	"time"
)

// Player represents a seat at a table. Table-level fields survive across
// hands; the per-hand fields are cleared by ResetForNewHand.
type Player struct {
	// Identity
	ID   string
	Name string

	// Chips not in play.
	Balance int64

	// Seated and eligible for the current hand. Players who join mid-hand
	// or bust out are inactive until the next hand they can afford.
	IsActive bool

	// Hand state (reset between hands)
	HoleCards  []Card
	CurrentBet int64 // chips committed on the current street
	TotalBet   int64 // chips committed during the whole hand
	HasFolded  bool
	HasActed   bool // acted voluntarily since the last raise on this street

	IsDealer     bool
	IsSmallBlind bool
	IsBigBlind   bool

	LastAction time.Time
}

// NewPlayer creates a seated, active player holding balance chips.
func NewPlayer(id, name string, balance int64) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Balance:   balance,
		IsActive:  true,
		HoleCards: make([]Card, 0, 2),
	}
}

// ResetForNewHand clears the per-hand fields while keeping table-level state.
func (p *Player) ResetForNewHand() {
	p.HoleCards = make([]Card, 0, 2)
	p.CurrentBet = 0
	p.TotalBet = 0
	p.HasFolded = false
	p.HasActed = false
	p.IsDealer = false
	p.IsSmallBlind = false
	p.IsBigBlind = false
}

// InHand reports whether the player still contests the current hand.
func (p *Player) InHand() bool {
	return p.IsActive && !p.HasFolded
}

// IsAllIn reports whether the player is in the hand with no chips behind.
func (p *Player) IsAllIn() bool {
	return p.InHand() && p.Balance == 0
}

// CanAct reports whether the player can still take a betting action.
func (p *Player) CanAct() bool {
	return p.InHand() && p.Balance > 0
}

// commit moves up to amount chips from the balance into the current bet and
// returns the chips actually moved.
func (p *Player) commit(amount int64) int64 {
	if amount > p.Balance {
		amount = p.Balance
	}
	p.Balance -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	return amount
}

func (p *Player) clone() *Player {
	c := *p
	c.HoleCards = append(make([]Card, 0, len(p.HoleCards)), p.HoleCards...)
	return &c
}

// GameState returns a short label of the player's state in the hand.
func (p *Player) GameState() string {
	switch {
	case !p.IsActive:
		return "SITTING_OUT"
	case p.HasFolded:
		return "FOLDED"
	case p.IsAllIn() && p.TotalBet > 0:
		return "ALL_IN"
	default:
		return "IN_GAME"
	}
}

// GetHandString returns a string representation of the player's hand
func (p *Player) GetHandString() string {
	if len(p.HoleCards) == 0 {
		return "No cards"
	}
	parts := make([]string, len(p.HoleCards))
	for i, c := range p.HoleCards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

package poker

import (
	"sort"

	"github.com/decred/slog"
)

// Pot represents a pot of chips in the game
type Pot struct {
	Amount      int64  // Total amount in the pot
	Eligibility []bool // len == len(players); seat-aligned mask
}

// NewPot creates a new empty pot
func NewPot(nPlayers int) *Pot {
	return &Pot{
		Amount:      0,
		Eligibility: make([]bool, nPlayers),
	}
}

// MakeEligible marks a player as eligible to win this pot
func (p *Pot) MakeEligible(playerIndex int) {
	p.Eligibility[playerIndex] = true
}

// IsEligible checks if a player is eligible to win this pot
func (p *Pot) IsEligible(playerIndex int) bool {
	return playerIndex >= 0 && playerIndex < len(p.Eligibility) && p.Eligibility[playerIndex]
}

// PotManager splits the chips of a hand into pots and awards them.
type PotManager struct {
	log  slog.Logger
	Pots []*Pot // Main pot followed by side pots
}

// NewPotManager returns a manager holding a single empty pot.
func NewPotManager(log slog.Logger, nPlayers int) *PotManager {
	if log == nil {
		log = slog.Disabled
	}
	return &PotManager{
		log:  log,
		Pots: []*Pot{NewPot(nPlayers)},
	}
}

// GetTotalPot returns the total amount across all pots
func (pm *PotManager) GetTotalPot() int64 {
	var total int64
	for _, pot := range pm.Pots {
		total += pot.Amount
	}
	return total
}

// BuildSinglePot puts every chip of the hand into one pot that all
// contenders are eligible for.
func (pm *PotManager) BuildSinglePot(players []*Player) {
	pot := NewPot(len(players))
	for i, p := range players {
		pot.Amount += p.TotalBet
		if p.InHand() {
			pot.MakeEligible(i)
		}
	}
	pm.Pots = []*Pot{pot}
}

// BuildPotsFromTotals rebuilds main/side pots from each player's TotalBet
// and fold status. Every distinct contribution level closes a pot that only
// the contenders who reached that level can win.
func (pm *PotManager) BuildPotsFromTotals(players []*Player) {
	n := len(players)

	seen := map[int64]bool{}
	for _, p := range players {
		if p.TotalBet > 0 && p.InHand() {
			seen[p.TotalBet] = true
		}
	}
	if len(seen) == 0 {
		pm.BuildSinglePot(players)
		return
	}

	levels := make([]int64, 0, len(seen))
	for b := range seen {
		levels = append(levels, b)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]*Pot, 0, len(levels))
	prev := int64(0)
	for _, lvl := range levels {
		p := NewPot(n)
		for i, pl := range players {
			if pl.InHand() && pl.TotalBet >= lvl {
				p.MakeEligible(i)
			}
			// each player pays min(TotalBet, lvl) - prev into this tier
			c := pl.TotalBet
			if c > lvl {
				c = lvl
			}
			if c -= prev; c > 0 {
				p.Amount += c
			}
		}
		pots = append(pots, p)
		prev = lvl
	}

	// Folded players may have put in more than the highest contender level.
	// Those chips belong to the last pot.
	top := levels[len(levels)-1]
	for _, pl := range players {
		if pl.TotalBet > top {
			pots[len(pots)-1].Amount += pl.TotalBet - top
		}
	}

	pm.Pots = pots
}

// DistributePots awards every pot to the best eligible hands. Ties split
// the pot evenly; odd chips go one at a time to the tied winners closest to
// the dealer's left. order lists the seats starting left of the dealer.
// The returned awards are aggregated per seat.
func (pm *PotManager) DistributePots(players []*Player, hands map[int]HandValue, order []int) map[int]int64 {
	awards := make(map[int]int64)
	for pi, pot := range pm.Pots {
		if pot.Amount == 0 {
			continue
		}

		var alive []int
		for _, idx := range order {
			if pot.IsEligible(idx) && players[idx].InHand() {
				alive = append(alive, idx)
			}
		}
		if len(alive) == 0 {
			pm.log.Errorf("[pot %d] no eligible players; pot=%d", pi, pot.Amount)
			continue
		}

		winners := []int{alive[0]}
		if len(alive) > 1 {
			winners = bestHands(alive, hands)
		}

		for idx, amt := range splitAmount(pot.Amount, winners) {
			awards[idx] += amt
		}
		pm.log.Debugf("[pot %d] %d chips to seats %v", pi, pot.Amount, winners)
	}
	return awards
}

// bestHands returns the seats holding the best hand, keeping the order of
// seats.
func bestHands(seats []int, hands map[int]HandValue) []int {
	var winners []int
	var best HandValue
	for _, idx := range seats {
		hv, ok := hands[idx]
		if !ok {
			continue
		}
		switch {
		case len(winners) == 0:
			best, winners = hv, []int{idx}
		case CompareHands(hv, best) > 0:
			best, winners = hv, []int{idx}
		case CompareHands(hv, best) == 0:
			winners = append(winners, idx)
		}
	}
	return winners
}

// splitAmount divides amount evenly between winners. The remainder goes one
// chip at a time to winners in the given order.
func splitAmount(amount int64, winners []int) map[int]int64 {
	out := make(map[int]int64, len(winners))
	if len(winners) == 0 {
		return out
	}
	share := amount / int64(len(winners))
	rem := amount % int64(len(winners))
	for i, idx := range winners {
		out[idx] = share
		if int64(i) < rem {
			out[idx]++
		}
	}
	return out
}

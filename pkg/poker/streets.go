package poker

import (
	"fmt"

	"github.com/vctt94/pokerroom/pkg/statemachine"
)

// streetFn is a state of the street machine. Each state does its work on
// the hand and returns the next state, or nil once a player has to act or
// the call is over.
type streetFn = statemachine.StateFn[handPlay]

type street struct {
	next  Phase
	cards int
	label string
}

var streets = map[Phase]street{
	PhasePreflop: {next: PhaseFlop, cards: 3, label: "Flop"},
	PhaseFlop:    {next: PhaseTurn, cards: 1, label: "Turn"},
	PhaseTurn:    {next: PhaseRiver, cards: 1, label: "River"},
}

// advanceStreet closes the betting round and deals the next street, or goes
// to showdown after the river.
func advanceStreet(h *handPlay) streetFn {
	t := h.t
	s, ok := streets[t.Phase]
	if !ok {
		return stateShowdown
	}
	if t.Deck == nil {
		h.err = ErrInsufficientCards
		return nil
	}
	cards, err := t.Deck.Deal(s.cards)
	if err != nil {
		h.err = err
		return nil
	}

	t.CommunityCards = append(t.CommunityCards, cards...)
	t.Phase = s.next
	t.resetStreet()

	h.logf("", "%s: %s", s.label, formatCards(cards))
	h.emit(Event{Type: EventPhaseAdvanced, Cards: cards})
	h.e.log.Debugf("Table %s: %s %s", t.ID(), s.next, formatCards(t.CommunityCards))
	return awaitAction
}

// awaitAction hands the turn to the first seat left of the dealer that has
// to act. With fewer than two players able to bet the board is run out.
func awaitAction(h *handPlay) streetFn {
	t := h.t
	if t.bettingRoundComplete() {
		return advanceStreet
	}
	t.CurrentPlayerIndex = t.nextSeat(t.DealerIndex, t.needsAction)
	return nil
}

// stateShowdown evaluates the contenders and awards the pots.
func stateShowdown(h *handPlay) streetFn {
	t := h.t
	t.Phase = PhaseShowdown
	t.CurrentPlayerIndex = -1

	result := &HandResult{
		HandNumber: t.HandNumber,
		Board:      append([]Card(nil), t.CommunityCards...),
	}

	// seats ordered from the dealer's left
	order := make([]int, 0, len(t.Players))
	for i := 1; i <= len(t.Players); i++ {
		order = append(order, (t.DealerIndex+i)%len(t.Players))
	}

	hands := make(map[int]HandValue)
	for _, idx := range order {
		p := t.Players[idx]
		if !p.InHand() {
			continue
		}
		hv, err := EvaluateHand(p.HoleCards, t.CommunityCards)
		if err != nil {
			h.err = err
			return nil
		}
		hands[idx] = hv
		all := append(append([]Card(nil), p.HoleCards...), t.CommunityCards...)
		result.Showdown = append(result.Showdown, ShowdownHand{
			PlayerID:    p.ID,
			HoleCards:   append([]Card(nil), p.HoleCards...),
			BestHand:    hv.BestHand,
			Category:    hv.Category,
			Description: hv.Description,
			Strength:    HandStrength(all),
		})
		h.logf(p.ID, "%s shows %s (%s)", p.Name, formatCards(p.HoleCards), hv.Description)
	}

	pm := NewPotManager(h.e.log, len(t.Players))
	if t.Config.SidePots {
		pm.BuildPotsFromTotals(t.Players)
	} else {
		pm.BuildSinglePot(t.Players)
	}
	if total := pm.GetTotalPot(); total != t.Pot {
		h.err = fmt.Errorf("%w: pots hold %d, table pot is %d", ErrPotMismatch, total, t.Pot)
		return nil
	}
	awards := pm.DistributePots(t.Players, hands, order)

	h.award(result, awards, order, hands)
	h.emit(Event{Type: EventShowdown, Awards: result.Awards})
	return stateEndHand
}

func stateEndHand(h *handPlay) streetFn {
	h.endRound()
	return nil
}

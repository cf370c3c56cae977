package poker

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"

	"github.com/vctt94/pokerroom/pkg/statemachine"
)

// Action is a betting action a player can take.
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionRaise Action = "raise"
	// ActionTimeout is injected when a player runs out of time. It folds.
	ActionTimeout Action = "timeout"
)

// ParseAction decodes an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionFold, ActionCheck, ActionCall, ActionRaise, ActionTimeout:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
}

// maxChainedHands bounds the hands a single call may play out when no
// player has a decision to make, e.g. every stack is all-in on the blinds.
const maxChainedHands = 32

// Engine applies player intents to tables. It holds no table state: every
// call works on a clone of the given table and returns the updated clone, so
// a rejected intent leaves the caller's table untouched.
type Engine struct {
	log   slog.Logger
	clock quartz.Clock
}

// NewEngine creates an engine. A nil clock uses the wall clock.
func NewEngine(log slog.Logger, clock quartz.Clock) *Engine {
	if log == nil {
		log = slog.Disabled
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Engine{log: log, clock: clock}
}

// handPlay is the working state of one engine call.
type handPlay struct {
	e      *Engine
	t      *Table
	now    time.Time
	events []Event
	result *HandResult
	hands  int
	err    error
}

func (e *Engine) newPlay(t *Table) *handPlay {
	return &handPlay{e: e, t: t.Clone(), now: e.clock.Now()}
}

func (h *handPlay) emit(ev Event) {
	ev.TableID = h.t.Config.ID
	if ev.HandNumber == 0 {
		ev.HandNumber = h.t.HandNumber
	}
	if ev.Phase == "" {
		ev.Phase = h.t.Phase
	}
	ev.Timestamp = h.now
	h.events = append(h.events, ev)
}

func (h *handPlay) logf(playerID, format string, args ...interface{}) {
	h.t.appendLog(h.now, playerID, format, args...)
}

// run drives the street state functions until a player has to act or the
// hand is over.
func (h *handPlay) run(initial statemachine.StateFn[handPlay]) {
	statemachine.NewStateMachine(h, initial).Run()
}

func (e *Engine) handRNG(t *Table) *rand.Rand {
	if t.Config.Seed == 0 {
		return rand.New(rand.NewSource(e.clock.Now().UnixNano() + t.HandNumber))
	}
	return rand.New(rand.NewSource(t.Config.Seed*1000003 + t.HandNumber))
}

// Seat adds a player to the table.
func (e *Engine) Seat(t *Table, playerID, name string, buyIn int64) (*Table, []Event, error) {
	if t == nil {
		return nil, nil, ErrRoomNotFound
	}
	h := e.newPlay(t)
	p, err := h.t.Seat(playerID, name, buyIn)
	if err != nil {
		return nil, nil, err
	}
	h.logf(p.ID, "%s joins the table with %d chips", p.Name, p.Balance)
	h.emit(Event{Type: EventPlayerJoined, PlayerID: p.ID, Amount: p.Balance, Message: p.Name})
	return h.t, h.events, nil
}

// Unseat removes a player from the table. Their balance is reported in the
// event amount.
func (e *Engine) Unseat(t *Table, playerID string) (*Table, []Event, error) {
	if t == nil {
		return nil, nil, ErrRoomNotFound
	}
	h := e.newPlay(t)
	p, err := h.t.Unseat(playerID)
	if err != nil {
		return nil, nil, err
	}
	h.logf(p.ID, "%s leaves the table with %d chips", p.Name, p.Balance)
	h.emit(Event{Type: EventPlayerLeft, PlayerID: p.ID, Amount: p.Balance, Message: p.Name})
	return h.t, h.events, nil
}

// StartHand starts a hand on a waiting table. The first hand is dealt by
// the current dealer seat; later hands rotate the button.
func (e *Engine) StartHand(t *Table) (*Table, []Event, error) {
	if t == nil {
		return nil, nil, ErrRoomNotFound
	}
	if t.IsHandInProgress() {
		return nil, nil, fmt.Errorf("%w: hand #%d is being played", ErrHandInProgress, t.HandNumber)
	}
	h := e.newPlay(t)
	if err := h.startHand(t.HandNumber > 0); err != nil {
		return nil, nil, err
	}
	if h.err != nil {
		return nil, nil, h.err
	}
	return h.t, h.events, nil
}

// ApplyAction validates and applies a player's action. On error the table
// is unchanged and no events are produced.
func (e *Engine) ApplyAction(t *Table, playerID string, action Action, amount int64) (*Table, []Event, error) {
	if t == nil {
		return nil, nil, ErrRoomNotFound
	}
	if !t.Phase.IsBetting() {
		return nil, nil, fmt.Errorf("%w: no betting round in progress (phase %s)", ErrInvalidAction, t.Phase)
	}
	idx := t.PlayerIndex(playerID)
	if idx < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if idx != t.CurrentPlayerIndex {
		return nil, nil, ErrNotYourTurn
	}

	h := e.newPlay(t)
	nt := h.t
	p := nt.Players[idx]
	if !p.InHand() {
		return nil, nil, fmt.Errorf("%w: %s is not in the hand", ErrInvalidAction, p.Name)
	}

	switch action {
	case ActionTimeout:
		h.logf(p.ID, "%s timed out", p.Name)
		h.emit(Event{Type: EventTimeout, PlayerID: p.ID})
		h.fold(p)

	case ActionFold:
		h.fold(p)

	case ActionCheck:
		if nt.CurrentBet != p.CurrentBet {
			return nil, nil, fmt.Errorf("%w: %d to call", ErrCannotCheckWithOpenBet, nt.CurrentBet-p.CurrentBet)
		}
		p.HasActed = true
		h.logf(p.ID, "%s checks", p.Name)
		h.emit(Event{Type: EventCheck, PlayerID: p.ID})

	case ActionCall:
		deficit := nt.CurrentBet - p.CurrentBet
		if deficit <= 0 {
			return nil, nil, ErrNoBetToCall
		}
		paid := p.commit(deficit)
		nt.Pot += paid
		p.HasActed = true
		if paid < deficit {
			h.logf(p.ID, "%s calls all-in with %d", p.Name, paid)
		} else {
			h.logf(p.ID, "%s calls %d", p.Name, paid)
		}
		h.emit(Event{Type: EventCall, PlayerID: p.ID, Amount: paid})

	case ActionRaise:
		if amount <= 0 {
			return nil, nil, fmt.Errorf("%w: raise amount must be positive", ErrInvalidAction)
		}
		if amount > p.Balance {
			return nil, nil, fmt.Errorf("%w: raise of %d with %d chips", ErrInsufficientBalance, amount, p.Balance)
		}
		if minTo := nt.CurrentBet + nt.Config.BigBlind; p.CurrentBet+amount < minTo {
			return nil, nil, fmt.Errorf("%w: must raise to at least %d", ErrRaiseBelowMinimum, minTo)
		}
		nt.Pot += p.commit(amount)
		nt.CurrentBet = p.CurrentBet
		nt.LastRaiserIndex = idx
		for _, other := range nt.Players {
			other.HasActed = false
		}
		p.HasActed = true
		h.logf(p.ID, "%s raises to %d", p.Name, p.CurrentBet)
		h.emit(Event{Type: EventRaise, PlayerID: p.ID, Amount: amount, Message: fmt.Sprintf("raises to %d", p.CurrentBet)})

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	nt.ActionSeq++
	p.LastAction = h.now
	e.log.Debugf("Table %s: %s %s %d (pot %d)", nt.ID(), p.Name, action, amount, nt.Pot)

	h.afterAction(idx)
	if h.err != nil {
		return nil, nil, h.err
	}
	return nt, h.events, nil
}

func (h *handPlay) fold(p *Player) {
	p.HasFolded = true
	p.HasActed = true
	h.logf(p.ID, "%s folds", p.Name)
	h.emit(Event{Type: EventFold, PlayerID: p.ID})
}

// afterAction ends the hand, closes the street or passes the turn.
func (h *handPlay) afterAction(idx int) {
	t := h.t
	if c := t.contenders(); len(c) == 1 {
		h.foldWin(t.PlayerIndex(c[0].ID))
		return
	}
	if t.bettingRoundComplete() {
		h.run(advanceStreet)
		return
	}
	t.CurrentPlayerIndex = t.nextSeat(idx, t.needsAction)
}

// startHand resets the table, moves the button, posts the blinds and deals.
func (h *handPlay) startHand(rotate bool) error {
	t := h.t
	h.hands++
	t.resetHand()

	active := 0
	for _, p := range t.Players {
		p.IsActive = p.Balance > 0
		if p.IsActive {
			active++
		}
	}
	need := t.Config.MinPlayers
	if need < 2 {
		need = 2
	}
	if active < need {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientActivePlayers, need, active)
	}

	isActive := func(p *Player) bool { return p.IsActive }
	if t.DealerIndex < 0 || t.DealerIndex >= len(t.Players) {
		t.DealerIndex = 0
	}
	if rotate || !t.Players[t.DealerIndex].IsActive {
		t.DealerIndex = t.nextSeat(t.DealerIndex, isActive)
	}
	sb := t.nextSeat(t.DealerIndex, isActive)
	bb := t.nextSeat(sb, isActive)

	t.HandNumber++
	t.Phase = PhasePreflop
	dealer := t.Players[t.DealerIndex]
	dealer.IsDealer = true
	h.logf("", "New hand starting. Dealer: %s", dealer.Name)
	h.emit(Event{Type: EventHandStarted, PlayerID: dealer.ID})
	h.e.log.Infof("Table %s: hand #%d starting with %d players, dealer %s",
		t.ID(), t.HandNumber, active, dealer.Name)

	t.Players[sb].IsSmallBlind = true
	h.postBlind(t.Players[sb], t.Config.SmallBlind, "small")
	t.Players[bb].IsBigBlind = true
	h.postBlind(t.Players[bb], t.Config.BigBlind, "big")
	t.CurrentBet = t.Config.BigBlind

	t.Deck = NewDeck(h.e.handRNG(t))
	for i := 1; i <= len(t.Players); i++ {
		p := t.Players[(t.DealerIndex+i)%len(t.Players)]
		if !p.IsActive {
			continue
		}
		cards, err := t.Deck.Deal(2)
		if err != nil {
			return err
		}
		p.HoleCards = cards
	}

	if t.bettingRoundComplete() {
		h.run(advanceStreet)
		return nil
	}
	t.CurrentPlayerIndex = t.nextSeat(bb, t.needsAction)
	return nil
}

// postBlind takes a forced bet. A short stack posts what it has.
func (h *handPlay) postBlind(p *Player, amount int64, kind string) {
	paid := p.commit(amount)
	h.t.Pot += paid
	if paid < amount {
		h.logf(p.ID, "%s posts %s blind %d (all-in)", p.Name, kind, paid)
	} else {
		h.logf(p.ID, "%s posts %s blind %d", p.Name, kind, paid)
	}
	h.emit(Event{Type: EventBlindPosted, PlayerID: p.ID, Amount: paid, Message: kind})
}

// foldWin awards the whole pot to the last player standing, without
// evaluating any hand.
func (h *handPlay) foldWin(idx int) {
	t := h.t
	p := t.Players[idx]
	result := &HandResult{
		HandNumber:  t.HandNumber,
		Board:       append([]Card(nil), t.CommunityCards...),
		FoldWin:     true,
		WinnerCards: append([]Card(nil), p.HoleCards...),
	}
	t.CurrentPlayerIndex = -1
	h.award(result, map[int]int64{idx: t.Pot}, []int{idx}, nil)
	h.run(stateEndHand)
}

// award credits the winners in seat order and records the result.
func (h *handPlay) award(result *HandResult, awards map[int]int64, order []int, hands map[int]HandValue) {
	t := h.t
	for _, idx := range order {
		amt := awards[idx]
		if amt <= 0 {
			continue
		}
		p := t.Players[idx]
		p.Balance += amt
		result.Awards = append(result.Awards, Award{PlayerID: p.ID, Amount: amt})
		if hv, ok := hands[idx]; ok {
			h.logf(p.ID, "%s wins %d with %s", p.Name, amt, hv.Description)
		} else {
			h.logf(p.ID, "%s wins %d", p.Name, amt)
		}
	}
	t.Pot = 0
	h.result = result
}

// endRound publishes the result and starts the next hand. When the next hand
// cannot start the table waits for players.
func (h *handPlay) endRound() {
	t := h.t
	t.LastHand = h.result
	h.emit(Event{Type: EventHandEnded, Awards: h.result.Awards})
	h.e.log.Infof("Table %s: hand #%d ended, awards %v", t.ID(), t.HandNumber, h.result.Awards)

	if h.hands >= maxChainedHands {
		t.resetHand()
		h.logf("", "Waiting for players")
		h.emit(Event{Type: EventWaiting, Message: "no decisions left in consecutive hands"})
		return
	}

	err := h.startHand(true)
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientActivePlayers):
		h.logf("", "Waiting for players")
		h.emit(Event{Type: EventWaiting, Message: err.Error()})
	default:
		h.err = err
	}
}

// Reveal shows the hole cards of the winner of a hand won by fold.
func (e *Engine) Reveal(t *Table, playerID string) (*Table, []Event, error) {
	if t == nil {
		return nil, nil, ErrRoomNotFound
	}
	if t.PlayerIndex(playerID) < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	r := t.LastHand
	if r == nil || !r.FoldWin || len(r.Awards) != 1 || r.Awards[0].PlayerID != playerID {
		return nil, nil, fmt.Errorf("%w: only the winner of a hand won by fold can reveal", ErrInvalidAction)
	}
	if _, done := r.Revealed[playerID]; done {
		return nil, nil, fmt.Errorf("%w: cards already revealed", ErrInvalidAction)
	}

	h := e.newPlay(t)
	lh := h.t.LastHand
	if lh.Revealed == nil {
		lh.Revealed = make(map[string][]Card)
	}
	lh.Revealed[playerID] = append([]Card(nil), lh.WinnerCards...)
	p := h.t.GetPlayer(playerID)
	h.logf(p.ID, "%s shows %s", p.Name, formatCards(lh.WinnerCards))
	h.emit(Event{Type: EventCardsRevealed, PlayerID: p.ID, HandNumber: lh.HandNumber, Cards: lh.WinnerCards})
	return h.t, h.events, nil
}

// AbortHand cancels the current hand after a structural failure: every
// player gets their chips for the hand back and the table waits.
func (e *Engine) AbortHand(t *Table, reason string) (*Table, []Event) {
	h := e.newPlay(t)
	nt := h.t
	for _, p := range nt.Players {
		p.Balance += p.TotalBet
	}
	hand := nt.HandNumber
	nt.resetHand()
	h.logf("", "Hand aborted: %s", reason)
	h.emit(Event{Type: EventHandAborted, HandNumber: hand, Message: reason})
	e.log.Errorf("Table %s: hand #%d aborted: %s", nt.ID(), hand, reason)
	e.log.Debugf("Aborted table state: %s", spew.Sdump(t.Players, t.CommunityCards, t.Pot))
	return nt, h.events
}

func formatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

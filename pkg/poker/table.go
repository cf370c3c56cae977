package poker

import (
	"fmt"
	"time"

	"github.com/thoas/go-funk"
)

// Phase is the stage of the current hand.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// IsBetting reports whether the phase is a betting street.
func (p Phase) IsBetting() bool {
	switch p {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	}
	return false
}

// MaxSeats caps the seats of a table so a hand never runs out of cards:
// 22 players * 2 hole cards + 5 board cards = 49.
const MaxSeats = 22

// TableConfig holds the rules of a table.
type TableConfig struct {
	ID          string
	SmallBlind  int64
	BigBlind    int64
	BuyIn       int64 // default chips a player sits down with
	MinPlayers  int
	MaxPlayers  int
	SidePots    bool  // split the pot into eligibility tiers on all-ins
	Seed        int64 // deck seed; 0 seeds each hand from the clock
	TurnTimeout time.Duration
}

// WithDefaults fills in unset seat counts.
func (c TableConfig) WithDefaults() TableConfig {
	if c.MinPlayers == 0 {
		c.MinPlayers = 2
	}
	if c.MaxPlayers == 0 {
		c.MaxPlayers = 9
	}
	if c.BuyIn == 0 {
		c.BuyIn = c.BigBlind * 100
	}
	return c
}

// Validate checks that the rules describe a playable table.
func (c TableConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("table id is required")
	}
	if c.SmallBlind <= 0 {
		return fmt.Errorf("small blind must be positive, got %d", c.SmallBlind)
	}
	if c.BigBlind < c.SmallBlind {
		return fmt.Errorf("big blind %d is below small blind %d", c.BigBlind, c.SmallBlind)
	}
	if c.MinPlayers < 2 {
		return fmt.Errorf("min players must be at least 2, got %d", c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers || c.MaxPlayers > MaxSeats {
		return fmt.Errorf("max players must be between %d and %d, got %d", c.MinPlayers, MaxSeats, c.MaxPlayers)
	}
	if c.BuyIn < c.BigBlind {
		return fmt.Errorf("buy-in %d is below the big blind %d", c.BuyIn, c.BigBlind)
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout cannot be negative")
	}
	return nil
}

// LogEntry is one line of a table's game log.
type LogEntry struct {
	Seq       int64     `json:"seq"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	PlayerID  string    `json:"player_id,omitempty"`
}

// Table is the aggregate of a room: its seats, the current hand and the game
// log. A Table is owned by a single writer; the Engine never mutates the
// table it is given but returns an updated clone.
type Table struct {
	Config TableConfig

	// Players in seat order. Rotation is by index.
	Players []*Player

	Phase          Phase
	Pot            int64
	CommunityCards []Card
	Deck           *Deck
	CurrentBet     int64

	DealerIndex        int
	CurrentPlayerIndex int // -1 when nobody is to act
	LastRaiserIndex    int // -1 when nobody raised on this street

	GameLog    []LogEntry
	HandNumber int64
	// ActionSeq increases with every applied action and lets stale turn
	// timeouts be told apart from live ones.
	ActionSeq int64
	LastHand  *HandResult

	// Version is the persisted revision, maintained by the store.
	Version int64
}

// NewTable creates an empty table in the waiting phase.
func NewTable(cfg TableConfig) *Table {
	return &Table{
		Config:             cfg.WithDefaults(),
		Players:            make([]*Player, 0),
		Phase:              PhaseWaiting,
		CommunityCards:     make([]Card, 0, 5),
		DealerIndex:        0,
		CurrentPlayerIndex: -1,
		LastRaiserIndex:    -1,
	}
}

// ID returns the table identifier.
func (t *Table) ID() string {
	return t.Config.ID
}

// Clone returns a deep copy of the table. The game log is append-only, so
// the clone shares its backing array but can never write into it.
func (t *Table) Clone() *Table {
	c := *t
	c.Players = make([]*Player, len(t.Players))
	for i, p := range t.Players {
		c.Players[i] = p.clone()
	}
	c.CommunityCards = append(make([]Card, 0, 5), t.CommunityCards...)
	c.Deck = t.Deck.clone()
	n := len(t.GameLog)
	c.GameLog = t.GameLog[:n:n]
	c.LastHand = t.LastHand.clone()
	return &c
}

// IsHandInProgress reports whether a hand is being played.
func (t *Table) IsHandInProgress() bool {
	return t.Phase != PhaseWaiting
}

// PlayerIndex returns the seat of the player, or -1.
func (t *Table) PlayerIndex(id string) int {
	for i, p := range t.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// GetPlayer returns the player with the given ID, or nil.
func (t *Table) GetPlayer(id string) *Player {
	if i := t.PlayerIndex(id); i >= 0 {
		return t.Players[i]
	}
	return nil
}

// CurrentPlayer returns the player to act, or nil.
func (t *Table) CurrentPlayer() *Player {
	if t.CurrentPlayerIndex < 0 || t.CurrentPlayerIndex >= len(t.Players) {
		return nil
	}
	return t.Players[t.CurrentPlayerIndex]
}

// Seat adds a player to the next free seat. A zero buyIn takes the table's
// default buy-in. Players seated during a hand sit out until the next one.
func (t *Table) Seat(id, name string, buyIn int64) (*Player, error) {
	if t.PlayerIndex(id) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySeated, id)
	}
	if len(t.Players) >= t.Config.MaxPlayers {
		return nil, fmt.Errorf("%w: %d of %d seats taken", ErrTableFull, len(t.Players), t.Config.MaxPlayers)
	}
	if buyIn == 0 {
		buyIn = t.Config.BuyIn
	}
	if buyIn < t.Config.BigBlind || buyIn <= 0 {
		return nil, fmt.Errorf("%w: %d is below the big blind %d", ErrInvalidBuyIn, buyIn, t.Config.BigBlind)
	}
	if name == "" {
		name = id
	}

	p := NewPlayer(id, name, buyIn)
	p.IsActive = !t.IsHandInProgress()
	t.Players = append(t.Players, p)
	return p, nil
}

// Unseat removes a player. It fails while the player holds cards in the
// current hand.
func (t *Table) Unseat(id string) (*Player, error) {
	idx := t.PlayerIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	p := t.Players[idx]
	if t.IsHandInProgress() && len(p.HoleCards) > 0 {
		return nil, fmt.Errorf("%w: %s holds cards", ErrHandInProgress, p.Name)
	}

	wasDealer := idx == t.DealerIndex
	t.Players = append(t.Players[:idx:idx], t.Players[idx+1:]...)
	shift := func(i int) int {
		if i > idx {
			return i - 1
		}
		return i
	}
	t.CurrentPlayerIndex = shift(t.CurrentPlayerIndex)
	t.LastRaiserIndex = shift(t.LastRaiserIndex)
	t.DealerIndex = shift(t.DealerIndex)
	if t.DealerIndex >= len(t.Players) {
		t.DealerIndex = 0
	}
	// The next rotation must land on the seat after the leaving dealer.
	if wasDealer && t.HandNumber > 0 && !t.IsHandInProgress() && len(t.Players) > 0 {
		t.DealerIndex = (idx - 1 + len(t.Players)) % len(t.Players)
	}
	return p, nil
}

// contenders returns the players still contesting the hand.
func (t *Table) contenders() []*Player {
	return funk.Filter(t.Players, func(p *Player) bool { return p.InHand() }).([]*Player)
}

// actors returns the players that can still bet.
func (t *Table) actors() []*Player {
	return funk.Filter(t.Players, func(p *Player) bool { return p.CanAct() }).([]*Player)
}

// needsAction reports whether the player must still act on this street.
func (t *Table) needsAction(p *Player) bool {
	return p.CanAct() && (!p.HasActed || p.CurrentBet < t.CurrentBet)
}

// bettingRoundComplete reports whether every player able to bet has acted
// since the last raise and matched the current bet. A lone player with
// chips behind who owes nothing has nobody left to bet against.
func (t *Table) bettingRoundComplete() bool {
	actors := t.actors()
	if len(actors) == 0 {
		return true
	}
	if len(actors) == 1 && actors[0].CurrentBet >= t.CurrentBet {
		return true
	}
	for _, p := range actors {
		if t.needsAction(p) {
			return false
		}
	}
	return true
}

// nextSeat scans forward from the seat after from, wrapping around, and
// returns the first seat whose player matches. from itself is checked last.
// It returns -1 when no seat matches.
func (t *Table) nextSeat(from int, match func(*Player) bool) int {
	n := len(t.Players)
	for i := 1; i <= n; i++ {
		idx := ((from+i)%n + n) % n
		if match(t.Players[idx]) {
			return idx
		}
	}
	return -1
}

// resetHand clears the state of the current hand and leaves the table
// waiting. Balances are not touched.
func (t *Table) resetHand() {
	for _, p := range t.Players {
		p.ResetForNewHand()
	}
	t.Phase = PhaseWaiting
	t.Pot = 0
	t.CommunityCards = make([]Card, 0, 5)
	t.Deck = nil
	t.CurrentBet = 0
	t.CurrentPlayerIndex = -1
	t.LastRaiserIndex = -1
}

// resetStreet clears the bets of the closed street.
func (t *Table) resetStreet() {
	for _, p := range t.Players {
		p.CurrentBet = 0
		p.HasActed = false
	}
	t.CurrentBet = 0
	t.CurrentPlayerIndex = -1
	t.LastRaiserIndex = -1
}

// TotalChips returns the chips on the table: all balances plus the pot.
func (t *Table) TotalChips() int64 {
	total := t.Pot
	for _, p := range t.Players {
		total += p.Balance
	}
	return total
}

func (t *Table) appendLog(ts time.Time, playerID, format string, args ...interface{}) {
	var seq int64 = 1
	if n := len(t.GameLog); n > 0 {
		seq = t.GameLog[n-1].Seq + 1
	}
	t.GameLog = append(t.GameLog, LogEntry{
		Seq:       seq,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: ts,
		PlayerID:  playerID,
	})
}

// GetStatus renders the table for debug logs. It includes every player's
// hole cards.
func (t *Table) GetStatus() string {
	status := fmt.Sprintf("Table %s (%s)\n", t.Config.ID, t.Phase)
	status += fmt.Sprintf("Hand #%d  Pot: %d  Current bet: %d\n", t.HandNumber, t.Pot, t.CurrentBet)
	if len(t.CommunityCards) > 0 {
		status += fmt.Sprintf("Board: %v\n", t.CommunityCards)
	}
	for i, p := range t.Players {
		marker := " "
		if i == t.CurrentPlayerIndex {
			marker = ">"
		}
		status += fmt.Sprintf("%s %d. %s  chips=%d bet=%d %s [%s]\n",
			marker, i, p.Name, p.Balance, p.CurrentBet, p.GameState(), p.GetHandString())
	}
	return status
}

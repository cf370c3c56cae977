package poker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableConfigValidate(t *testing.T) {
	valid := TableConfig{ID: "t", SmallBlind: 1, BigBlind: 2}.WithDefaults()
	require.NoError(t, valid.Validate())
	assert.Equal(t, 2, valid.MinPlayers)
	assert.Equal(t, 9, valid.MaxPlayers)
	assert.Equal(t, int64(200), valid.BuyIn)

	tests := []struct {
		name   string
		mutate func(*TableConfig)
	}{
		{"missing id", func(c *TableConfig) { c.ID = "" }},
		{"zero small blind", func(c *TableConfig) { c.SmallBlind = 0 }},
		{"big below small", func(c *TableConfig) { c.BigBlind = 0 }},
		{"one player", func(c *TableConfig) { c.MinPlayers = 1 }},
		{"too many seats", func(c *TableConfig) { c.MaxPlayers = MaxSeats + 1 }},
		{"max below min", func(c *TableConfig) { c.MinPlayers, c.MaxPlayers = 4, 3 }},
		{"buy-in below big blind", func(c *TableConfig) { c.BuyIn = 1 }},
		{"negative timeout", func(c *TableConfig) { c.TurnTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSeat(t *testing.T) {
	tbl := NewTable(TableConfig{ID: "t", SmallBlind: 1, BigBlind: 2, BuyIn: 100, MaxPlayers: 2})

	p, err := tbl.Seat("a", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)
	assert.Equal(t, int64(100), p.Balance)
	assert.True(t, p.IsActive)

	_, err = tbl.Seat("a", "Again", 0)
	assert.True(t, errors.Is(err, ErrAlreadySeated))

	_, err = tbl.Seat("b", "Bob", 1)
	assert.True(t, errors.Is(err, ErrInvalidBuyIn))
	_, err = tbl.Seat("b", "Bob", -5)
	assert.True(t, errors.Is(err, ErrInvalidBuyIn))

	_, err = tbl.Seat("b", "Bob", 50)
	require.NoError(t, err)

	_, err = tbl.Seat("c", "Carol", 0)
	assert.True(t, errors.Is(err, ErrTableFull))
	assert.True(t, IsValidation(err))
}

func TestSeatDuringHandSitsOut(t *testing.T) {
	tbl := newTestTable(t, 100, 100)
	tbl.Phase = PhaseFlop

	p, err := tbl.Seat("late", "Late", 0)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	// no cards, so the player may leave again
	_, err = tbl.Unseat("late")
	require.NoError(t, err)
}

func TestUnseat(t *testing.T) {
	tbl := newTestTable(t, 100, 100, 100)
	tbl.DealerIndex = 2

	_, err := tbl.Unseat("ghost")
	assert.True(t, errors.Is(err, ErrPlayerNotFound))

	p, err := tbl.Unseat("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Len(t, tbl.Players, 2)
	assert.Equal(t, 1, tbl.DealerIndex, "dealer index follows its seat")

	_, err = tbl.Unseat("p2")
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.DealerIndex)

	tbl.Phase = PhasePreflop
	tbl.Players[0].HoleCards = MustParseCards("AS KS")
	_, err = tbl.Unseat("p0")
	assert.True(t, errors.Is(err, ErrHandInProgress))
}

func TestCloneIsDeep(t *testing.T) {
	e := newTestEngine(t)
	tbl, _, err := e.StartHand(newTestTable(t, 100, 100))
	require.NoError(t, err)

	c := tbl.Clone()
	c.Players[0].Balance = 1
	c.Players[0].HoleCards[0] = NewCard(Two, Clubs)
	_, err = c.Deck.Deal(3)
	require.NoError(t, err)
	c.appendLog(testNow, "", "only in the clone")
	c.CommunityCards = append(c.CommunityCards, NewCard(Ace, Spades))

	assert.NotEqual(t, int64(1), tbl.Players[0].Balance)
	assert.NotEqual(t, NewCard(Two, Clubs), tbl.Players[0].HoleCards[0])
	assert.Equal(t, 48, tbl.Deck.Size())
	assert.Len(t, tbl.GameLog, len(c.GameLog)-1)
	assert.Empty(t, tbl.CommunityCards)

	// appending to the original does not show up in the clone either
	tbl.appendLog(testNow, "", "only in the original")
	assert.Equal(t, "only in the clone", c.GameLog[len(c.GameLog)-1].Message)
}

func TestGameLogSequence(t *testing.T) {
	tbl := NewTable(TableConfig{ID: "t"})
	tbl.appendLog(testNow, "p1", "%s checks", "Alice")
	tbl.appendLog(testNow, "", "Flop: %s", "A♠ K♠ Q♠")

	require.Len(t, tbl.GameLog, 2)
	assert.Equal(t, int64(1), tbl.GameLog[0].Seq)
	assert.Equal(t, int64(2), tbl.GameLog[1].Seq)
	assert.Equal(t, "Alice checks", tbl.GameLog[0].Message)
	assert.Equal(t, "p1", tbl.GameLog[0].PlayerID)
}

func TestNextSeatWraps(t *testing.T) {
	tbl := newTestTable(t, 100, 100, 100, 100)
	tbl.Players[0].HasFolded = true
	tbl.Players[1].IsActive = false

	assert.Equal(t, 2, tbl.nextSeat(3, func(p *Player) bool { return p.InHand() }))
	assert.Equal(t, 3, tbl.nextSeat(3, func(p *Player) bool { return p.ID == "p3" }))
	assert.Equal(t, -1, tbl.nextSeat(0, func(*Player) bool { return false }))
	assert.Equal(t, 2, tbl.nextSeat(-1, func(p *Player) bool { return p.InHand() }))

	tbl.Players[2].HoleCards = MustParseCards("AS KD")
	tbl.CurrentPlayerIndex = 2
	status := tbl.GetStatus()
	assert.Contains(t, status, "> 2. Player2")
	assert.Contains(t, status, "[A♠ K♦]")
	assert.Contains(t, status, "[No cards]")
}

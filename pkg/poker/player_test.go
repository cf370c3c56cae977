package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayer(t *testing.T) {
	p := NewPlayer("p1", "Alice", 1000)
	require.NotNil(t, p)
	assert.True(t, p.IsActive)
	assert.Equal(t, int64(1000), p.Balance)
	assert.Equal(t, "IN_GAME", p.GameState())
	assert.Equal(t, "No cards", p.GetHandString())
}

func TestPlayerCommitCapsAtBalance(t *testing.T) {
	p := NewPlayer("p1", "Alice", 30)

	assert.Equal(t, int64(20), p.commit(20))
	assert.Equal(t, int64(10), p.Balance)

	assert.Equal(t, int64(10), p.commit(50))
	assert.Zero(t, p.Balance)
	assert.Equal(t, int64(30), p.CurrentBet)
	assert.Equal(t, int64(30), p.TotalBet)
	assert.True(t, p.IsAllIn())
	assert.False(t, p.CanAct())
	assert.Equal(t, "ALL_IN", p.GameState())
}

func TestPlayerStates(t *testing.T) {
	p := NewPlayer("p1", "Alice", 100)
	p.HasFolded = true
	assert.False(t, p.InHand())
	assert.False(t, p.CanAct())
	assert.Equal(t, "FOLDED", p.GameState())

	p.IsActive = false
	assert.Equal(t, "SITTING_OUT", p.GameState())
}

func TestResetForNewHand(t *testing.T) {
	p := NewPlayer("p1", "Alice", 100)
	p.HoleCards = MustParseCards("AS KS")
	p.commit(10)
	p.HasFolded = true
	p.HasActed = true
	p.IsDealer, p.IsSmallBlind, p.IsBigBlind = true, true, true

	p.ResetForNewHand()

	assert.Empty(t, p.HoleCards)
	assert.Zero(t, p.CurrentBet)
	assert.Zero(t, p.TotalBet)
	assert.False(t, p.HasFolded)
	assert.False(t, p.HasActed)
	assert.False(t, p.IsDealer || p.IsSmallBlind || p.IsBigBlind)
	// chips are kept
	assert.Equal(t, int64(90), p.Balance)
}

func TestPlayerCloneCopiesCards(t *testing.T) {
	p := NewPlayer("p1", "Alice", 100)
	p.HoleCards = MustParseCards("AS KS")

	c := p.clone()
	c.HoleCards[0] = NewCard(Two, Clubs)
	c.Balance = 5

	assert.Equal(t, NewCard(Ace, Spades), p.HoleCards[0])
	assert.Equal(t, int64(100), p.Balance)
}

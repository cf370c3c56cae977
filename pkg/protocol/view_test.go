package protocol

import (
	"encoding/json"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/pokerroom/pkg/poker"
)

func newTable(t *testing.T) (*poker.Engine, *poker.Table) {
	t.Helper()
	eng := poker.NewEngine(slog.Disabled, nil)
	tbl := poker.NewTable(poker.TableConfig{ID: "v", SmallBlind: 1, BigBlind: 2, BuyIn: 100, MaxPlayers: 6, Seed: 3})
	var err error
	for _, id := range []string{"a", "b", "c"} {
		tbl, _, err = eng.Seat(tbl, id, "", 0)
		require.NoError(t, err)
	}
	tbl, _, err = eng.StartHand(tbl)
	require.NoError(t, err)
	return eng, tbl
}

func TestTableViewHidesOtherHoleCards(t *testing.T) {
	_, tbl := newTable(t)

	v := NewTableView(tbl, "b")
	assert.Equal(t, "b", v.ViewerID)
	assert.Equal(t, tbl.CurrentPlayer().ID, v.CurrentPlayer)
	assert.Equal(t, tbl.CurrentBet+2, v.MinRaiseTo)
	require.Len(t, v.Players, 3)
	for i, p := range v.Players {
		assert.Equal(t, i, p.Seat)
		assert.Equal(t, 2, p.CardCount)
		if p.ID == "b" {
			assert.Equal(t, tbl.GetPlayer("b").HoleCards, p.HoleCards)
		} else {
			assert.Empty(t, p.HoleCards)
		}
	}

	spectator := NewTableView(tbl, "")
	for _, p := range spectator.Players {
		assert.Empty(t, p.HoleCards)
	}

	// The view is a copy.
	v.Players[1].HoleCards[0] = poker.Card{}
	assert.NotEqual(t, poker.Card{}, tbl.GetPlayer("b").HoleCards[0])
}

func TestTableViewFoldWinCards(t *testing.T) {
	eng, tbl := newTable(t)
	var err error
	for i := 0; i < 2; i++ {
		tbl, _, err = eng.ApplyAction(tbl, tbl.CurrentPlayer().ID, poker.ActionFold, 0)
		require.NoError(t, err)
	}
	require.NotNil(t, tbl.LastHand)
	require.True(t, tbl.LastHand.FoldWin)
	winner := tbl.LastHand.Awards[0].PlayerID
	loser := "a"
	if winner == "a" {
		loser = "b"
	}

	assert.Len(t, NewTableView(tbl, winner).LastHand.WinnerCards, 2)
	assert.Empty(t, NewTableView(tbl, loser).LastHand.WinnerCards)
	assert.Empty(t, NewTableView(tbl, "").LastHand.WinnerCards)
	// Hiding the cards leaves the table alone.
	assert.Len(t, tbl.LastHand.WinnerCards, 2)

	tbl, _, err = eng.Reveal(tbl, winner)
	require.NoError(t, err)
	v := NewTableView(tbl, loser)
	assert.Empty(t, v.LastHand.WinnerCards)
	assert.Len(t, v.LastHand.Revealed[winner], 2)
}

func TestTableViewLogTail(t *testing.T) {
	eng, tbl := newTable(t)
	var err error
	for len(tbl.GameLog) <= maxViewLog {
		tbl, _, err = eng.ApplyAction(tbl, tbl.CurrentPlayer().ID, poker.ActionFold, 0)
		require.NoError(t, err)
	}
	v := NewTableView(tbl, "a")
	require.Len(t, v.Log, maxViewLog)
	assert.Equal(t, tbl.GameLog[len(tbl.GameLog)-1].Seq, v.Log[maxViewLog-1].Seq)
}

func TestServerMessageJSON(t *testing.T) {
	_, tbl := newTable(t)
	msg := &ServerMessage{
		Type:  MsgUpdate,
		State: NewTableView(tbl, "a"),
		Events: []poker.Event{
			{Type: poker.EventCheck, TableID: "v", HandNumber: 1, PlayerID: "a"},
		},
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var got ServerMessage
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, MsgUpdate, got.Type)
	require.Len(t, got.Events, 1)
	assert.Equal(t, poker.EventCheck, got.Events[0].Type)
	require.NotNil(t, got.State)
	assert.Equal(t, msg.State.Players[0].HoleCards, got.State.Players[0].HoleCards)
	assert.Equal(t, "preflop", string(got.State.Phase))
}

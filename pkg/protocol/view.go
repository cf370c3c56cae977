package protocol

import (
	"github.com/vctt94/pokerroom/pkg/poker"
)

// maxViewLog is the number of game log lines sent with a view.
const maxViewLog = 30

// TableView is a table as seen by one player. Hole cards of other players
// are hidden; cards shown at showdown or revealed after a fold win are
// public through LastHand.
type TableView struct {
	RoomID     string      `json:"room_id"`
	ViewerID   string      `json:"viewer_id"`
	Phase      poker.Phase `json:"phase"`
	HandNumber int64       `json:"hand_number"`
	ActionSeq  int64       `json:"action_seq"`
	Version    int64       `json:"version"`

	SmallBlind int64 `json:"small_blind"`
	BigBlind   int64 `json:"big_blind"`
	BuyIn      int64 `json:"buy_in"`
	MaxPlayers int   `json:"max_players"`

	Pot            int64        `json:"pot"`
	CurrentBet     int64        `json:"current_bet"`
	MinRaiseTo     int64        `json:"min_raise_to"`
	CommunityCards []poker.Card `json:"community_cards"`
	DealerIndex    int          `json:"dealer_index"`
	CurrentPlayer  string       `json:"current_player,omitempty"`
	Players        []PlayerView `json:"players"`

	LastHand *poker.HandResult `json:"last_hand,omitempty"`
	Log      []poker.LogEntry  `json:"log,omitempty"`
}

// PlayerView is a seat of a TableView.
type PlayerView struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Seat         int          `json:"seat"`
	Balance      int64        `json:"balance"`
	CurrentBet   int64        `json:"current_bet"`
	TotalBet     int64        `json:"total_bet"`
	State        string       `json:"state"`
	IsDealer     bool         `json:"is_dealer,omitempty"`
	IsSmallBlind bool         `json:"is_small_blind,omitempty"`
	IsBigBlind   bool         `json:"is_big_blind,omitempty"`
	CardCount    int          `json:"card_count"`
	HoleCards    []poker.Card `json:"hole_cards,omitempty"`
}

// NewTableView builds the view of t for viewerID. An empty viewerID builds
// the spectator view.
func NewTableView(t *poker.Table, viewerID string) *TableView {
	v := &TableView{
		RoomID:         t.ID(),
		ViewerID:       viewerID,
		Phase:          t.Phase,
		HandNumber:     t.HandNumber,
		ActionSeq:      t.ActionSeq,
		Version:        t.Version,
		SmallBlind:     t.Config.SmallBlind,
		BigBlind:       t.Config.BigBlind,
		BuyIn:          t.Config.BuyIn,
		MaxPlayers:     t.Config.MaxPlayers,
		Pot:            t.Pot,
		CurrentBet:     t.CurrentBet,
		CommunityCards: append([]poker.Card{}, t.CommunityCards...),
		DealerIndex:    t.DealerIndex,
		Players:        make([]PlayerView, len(t.Players)),
	}
	if t.Phase.IsBetting() {
		v.MinRaiseTo = t.CurrentBet + t.Config.BigBlind
	}
	if cur := t.CurrentPlayer(); cur != nil {
		v.CurrentPlayer = cur.ID
	}

	for i, p := range t.Players {
		pv := PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Seat:         i,
			Balance:      p.Balance,
			CurrentBet:   p.CurrentBet,
			TotalBet:     p.TotalBet,
			State:        p.GameState(),
			IsDealer:     p.IsDealer,
			IsSmallBlind: p.IsSmallBlind,
			IsBigBlind:   p.IsBigBlind,
			CardCount:    len(p.HoleCards),
		}
		if p.ID == viewerID {
			pv.HoleCards = append([]poker.Card{}, p.HoleCards...)
		}
		v.Players[i] = pv
	}

	if lh := t.LastHand; lh != nil {
		c := *lh
		// A fold-win winner's cards stay private until revealed.
		if c.FoldWin && !isWinner(lh, viewerID) {
			c.WinnerCards = nil
		}
		v.LastHand = &c
	}

	log := t.GameLog
	if len(log) > maxViewLog {
		log = log[len(log)-maxViewLog:]
	}
	v.Log = append([]poker.LogEntry(nil), log...)
	return v
}

func isWinner(r *poker.HandResult, playerID string) bool {
	if playerID == "" {
		return false
	}
	for _, a := range r.Awards {
		if a.PlayerID == playerID {
			return true
		}
	}
	return false
}

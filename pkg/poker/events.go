package poker

import "time"

// EventType identifies what happened at a table.
type EventType string

const (
	EventHandStarted   EventType = "hand_started"
	EventBlindPosted   EventType = "blind_posted"
	EventFold          EventType = "fold"
	EventCheck         EventType = "check"
	EventCall          EventType = "call"
	EventRaise         EventType = "raise"
	EventTimeout       EventType = "timeout"
	EventPhaseAdvanced EventType = "phase_advanced"
	EventShowdown      EventType = "showdown"
	EventHandEnded     EventType = "hand_ended"
	EventHandAborted   EventType = "hand_aborted"
	EventWaiting       EventType = "waiting_for_players"
	EventCardsRevealed EventType = "cards_revealed"
	EventPlayerJoined  EventType = "player_joined"
	EventPlayerLeft    EventType = "player_left"
)

// Event is produced by every state change of a table and handed to the
// transport for broadcasting. Events never carry private hole cards except
// for showdown and reveal events, whose cards are public.
type Event struct {
	Type       EventType `json:"type"`
	TableID    string    `json:"table_id"`
	HandNumber int64     `json:"hand_number"`
	PlayerID   string    `json:"player_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Phase      Phase     `json:"phase,omitempty"`
	Cards      []Card    `json:"cards,omitempty"`
	Awards     []Award   `json:"awards,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Award is the amount of chips a player won in a hand.
type Award struct {
	PlayerID string `json:"player_id"`
	Amount   int64  `json:"amount"`
}

// ShowdownHand is a contender's hand as revealed at showdown.
type ShowdownHand struct {
	PlayerID    string       `json:"player_id"`
	HoleCards   []Card       `json:"hole_cards"`
	BestHand    []Card       `json:"best_hand"`
	Category    HandCategory `json:"category"`
	Description string       `json:"description"`
	Strength    float64      `json:"strength"`
}

// HandResult summarizes a finished hand.
type HandResult struct {
	HandNumber int64          `json:"hand_number"`
	Board      []Card         `json:"board"`
	Showdown   []ShowdownHand `json:"showdown,omitempty"`
	Awards     []Award        `json:"awards"`
	FoldWin    bool           `json:"fold_win"`

	// WinnerCards holds the hole cards of a fold-win winner. They stay
	// private unless the winner reveals them.
	WinnerCards []Card            `json:"winner_cards,omitempty"`
	Revealed    map[string][]Card `json:"revealed,omitempty"`
}

// Winners returns the IDs of the players who won chips.
func (r *HandResult) Winners() []string {
	ids := make([]string, 0, len(r.Awards))
	for _, a := range r.Awards {
		ids = append(ids, a.PlayerID)
	}
	return ids
}

func (r *HandResult) clone() *HandResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Board = append([]Card(nil), r.Board...)
	c.Showdown = append([]ShowdownHand(nil), r.Showdown...)
	c.Awards = append([]Award(nil), r.Awards...)
	c.WinnerCards = append([]Card(nil), r.WinnerCards...)
	if r.Revealed != nil {
		c.Revealed = make(map[string][]Card, len(r.Revealed))
		for id, cards := range r.Revealed {
			c.Revealed[id] = append([]Card(nil), cards...)
		}
	}
	return &c
}

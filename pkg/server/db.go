package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/server/internal/db"
)

// Database defines the interface for database operations
type Database interface {
	// CreateRoom inserts a new room at version 1.
	CreateRoom(rs *db.RoomState, players []*db.PlayerState) error
	// SaveSnapshot atomically persists a room together with its seats and
	// new log entries, provided the stored version still is expectVersion.
	SaveSnapshot(rs *db.RoomState, players []*db.PlayerState, log []db.LogEntry, expectVersion int64) error
	LoadRoomState(roomID string) (*db.RoomState, error)
	LoadPlayerStates(roomID string) ([]*db.PlayerState, error)
	LoadGameLog(roomID string) ([]db.LogEntry, error)

	// Room discovery
	GetAllRoomIDs() ([]string, error)

	// Close closes the database connection
	Close() error
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (Database, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	// Create the database
	return db.NewDB(dbPath)
}

// roomStateFromTable flattens a table into its persisted row.
func roomStateFromTable(t *poker.Table, now time.Time) (*db.RoomState, error) {
	cfg := t.Config
	rs := &db.RoomState{
		ID:                 cfg.ID,
		SmallBlind:         cfg.SmallBlind,
		BigBlind:           cfg.BigBlind,
		BuyIn:              cfg.BuyIn,
		MinPlayers:         cfg.MinPlayers,
		MaxPlayers:         cfg.MaxPlayers,
		SidePots:           cfg.SidePots,
		Seed:               cfg.Seed,
		TurnTimeoutMs:      cfg.TurnTimeout.Milliseconds(),
		Phase:              string(t.Phase),
		Pot:                t.Pot,
		CurrentBet:         t.CurrentBet,
		CommunityCards:     poker.EncodeCards(t.CommunityCards),
		DealerIndex:        t.DealerIndex,
		CurrentPlayerIndex: t.CurrentPlayerIndex,
		LastRaiserIndex:    t.LastRaiserIndex,
		HandNumber:         t.HandNumber,
		ActionSeq:          t.ActionSeq,
		Version:            t.Version,
		UpdatedAt:          now,
	}
	if t.Deck != nil {
		rs.Deck = poker.EncodeCards(t.Deck.Cards())
	}
	if t.LastHand != nil {
		b, err := json.Marshal(t.LastHand)
		if err != nil {
			return nil, fmt.Errorf("failed to encode last hand of room %s: %v", cfg.ID, err)
		}
		rs.LastHand = string(b)
	}
	return rs, nil
}

// playerStatesFromTable returns the seats of a table in seat order.
func playerStatesFromTable(t *poker.Table) []*db.PlayerState {
	states := make([]*db.PlayerState, len(t.Players))
	for i, p := range t.Players {
		states[i] = &db.PlayerState{
			Seat:         i,
			PlayerID:     p.ID,
			Name:         p.Name,
			Balance:      p.Balance,
			IsActive:     p.IsActive,
			HoleCards:    poker.EncodeCards(p.HoleCards),
			CurrentBet:   p.CurrentBet,
			TotalBet:     p.TotalBet,
			HasFolded:    p.HasFolded,
			HasActed:     p.HasActed,
			IsDealer:     p.IsDealer,
			IsSmallBlind: p.IsSmallBlind,
			IsBigBlind:   p.IsBigBlind,
			LastAction:   p.LastAction,
		}
	}
	return states
}

// logEntriesFromTable returns the log entries newer than afterSeq.
func logEntriesFromTable(t *poker.Table, afterSeq int64) []db.LogEntry {
	var entries []db.LogEntry
	for _, e := range t.GameLog {
		if e.Seq <= afterSeq {
			continue
		}
		entries = append(entries, db.LogEntry{
			Seq:       e.Seq,
			Message:   e.Message,
			PlayerID:  e.PlayerID,
			Timestamp: e.Timestamp,
		})
	}
	return entries
}

// tableFromStates rebuilds a table from its persisted rows.
func tableFromStates(rs *db.RoomState, players []*db.PlayerState, log []db.LogEntry) (*poker.Table, error) {
	t := poker.NewTable(poker.TableConfig{
		ID:          rs.ID,
		SmallBlind:  rs.SmallBlind,
		BigBlind:    rs.BigBlind,
		BuyIn:       rs.BuyIn,
		MinPlayers:  rs.MinPlayers,
		MaxPlayers:  rs.MaxPlayers,
		SidePots:    rs.SidePots,
		Seed:        rs.Seed,
		TurnTimeout: time.Duration(rs.TurnTimeoutMs) * time.Millisecond,
	})

	community, err := poker.DecodeCards(rs.CommunityCards)
	if err != nil {
		return nil, fmt.Errorf("room %s community cards: %v", rs.ID, err)
	}
	t.Phase = poker.Phase(rs.Phase)
	t.Pot = rs.Pot
	t.CurrentBet = rs.CurrentBet
	t.CommunityCards = community
	t.DealerIndex = rs.DealerIndex
	t.CurrentPlayerIndex = rs.CurrentPlayerIndex
	t.LastRaiserIndex = rs.LastRaiserIndex
	t.HandNumber = rs.HandNumber
	t.ActionSeq = rs.ActionSeq
	t.Version = rs.Version

	if t.IsHandInProgress() {
		cards, err := poker.DecodeCards(rs.Deck)
		if err != nil {
			return nil, fmt.Errorf("room %s deck: %v", rs.ID, err)
		}
		t.Deck = poker.NewDeckFromCards(cards, nil)
	}

	if rs.LastHand != "" {
		var lh poker.HandResult
		if err := json.Unmarshal([]byte(rs.LastHand), &lh); err != nil {
			return nil, fmt.Errorf("room %s last hand: %v", rs.ID, err)
		}
		t.LastHand = &lh
	}

	for _, ps := range players {
		hole, err := poker.DecodeCards(ps.HoleCards)
		if err != nil {
			return nil, fmt.Errorf("room %s seat %d hole cards: %v", rs.ID, ps.Seat, err)
		}
		p := poker.NewPlayer(ps.PlayerID, ps.Name, ps.Balance)
		p.IsActive = ps.IsActive
		p.HoleCards = hole
		p.CurrentBet = ps.CurrentBet
		p.TotalBet = ps.TotalBet
		p.HasFolded = ps.HasFolded
		p.HasActed = ps.HasActed
		p.IsDealer = ps.IsDealer
		p.IsSmallBlind = ps.IsSmallBlind
		p.IsBigBlind = ps.IsBigBlind
		p.LastAction = ps.LastAction
		t.Players = append(t.Players, p)
	}

	for _, e := range log {
		t.GameLog = append(t.GameLog, poker.LogEntry{
			Seq:       e.Seq,
			Message:   e.Message,
			PlayerID:  e.PlayerID,
			Timestamp: e.Timestamp,
		})
	}
	return t, nil
}

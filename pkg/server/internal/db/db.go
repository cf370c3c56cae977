package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrVersionConflict is returned when a room was modified since it was
// loaded.
var ErrVersionConflict = errors.New("room version conflict")

// ErrNotFound is returned when a room does not exist.
var ErrNotFound = errors.New("room not found")

// DB represents the database connection
type DB struct {
	*sql.DB
}

// RoomState is the persisted row of a room.
type RoomState struct {
	ID            string
	SmallBlind    int64
	BigBlind      int64
	BuyIn         int64
	MinPlayers    int
	MaxPlayers    int
	SidePots      bool
	Seed          int64
	TurnTimeoutMs int64

	Phase              string
	Pot                int64
	CurrentBet         int64
	CommunityCards     string
	Deck               string
	DealerIndex        int
	CurrentPlayerIndex int
	LastRaiserIndex    int
	HandNumber         int64
	ActionSeq          int64
	LastHand           string // JSON, empty when no hand was played
	Version            int64
	UpdatedAt          time.Time
}

// PlayerState is a persisted seat of a room.
type PlayerState struct {
	Seat         int
	PlayerID     string
	Name         string
	Balance      int64
	IsActive     bool
	HoleCards    string
	CurrentBet   int64
	TotalBet     int64
	HasFolded    bool
	HasActed     bool
	IsDealer     bool
	IsSmallBlind bool
	IsBigBlind   bool
	LastAction   time.Time
}

// LogEntry is a persisted game log line.
type LogEntry struct {
	Seq       int64
	Message   string
	PlayerID  string
	Timestamp time.Time
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection keeps transactions from
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary database tables
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			small_blind INTEGER NOT NULL,
			big_blind INTEGER NOT NULL,
			buy_in INTEGER NOT NULL,
			min_players INTEGER NOT NULL,
			max_players INTEGER NOT NULL,
			side_pots BOOLEAN NOT NULL DEFAULT 0,
			seed INTEGER NOT NULL DEFAULT 0,
			turn_timeout_ms INTEGER NOT NULL DEFAULT 0,
			phase TEXT NOT NULL,
			pot INTEGER NOT NULL DEFAULT 0,
			current_bet INTEGER NOT NULL DEFAULT 0,
			community_cards TEXT NOT NULL DEFAULT '',
			deck TEXT NOT NULL DEFAULT '',
			dealer_index INTEGER NOT NULL DEFAULT 0,
			current_player_index INTEGER NOT NULL DEFAULT -1,
			last_raiser_index INTEGER NOT NULL DEFAULT -1,
			hand_number INTEGER NOT NULL DEFAULT 0,
			action_seq INTEGER NOT NULL DEFAULT 0,
			last_hand TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS room_players (
			room_id TEXT NOT NULL,
			seat INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			balance INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL,
			hole_cards TEXT NOT NULL DEFAULT '',
			current_bet INTEGER NOT NULL DEFAULT 0,
			total_bet INTEGER NOT NULL DEFAULT 0,
			has_folded BOOLEAN NOT NULL DEFAULT 0,
			has_acted BOOLEAN NOT NULL DEFAULT 0,
			is_dealer BOOLEAN NOT NULL DEFAULT 0,
			is_small_blind BOOLEAN NOT NULL DEFAULT 0,
			is_big_blind BOOLEAN NOT NULL DEFAULT 0,
			last_action TIMESTAMP,
			PRIMARY KEY (room_id, seat),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS game_log (
			room_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			player_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (room_id, seq),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)
	`)
	return err
}

// CreateRoom inserts a new room with its seats at version 1.
func (db *DB) CreateRoom(rs *RoomState, players []*PlayerState) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO rooms (id, small_blind, big_blind, buy_in, min_players, max_players,
			side_pots, seed, turn_timeout_ms, phase, pot, current_bet, community_cards, deck,
			dealer_index, current_player_index, last_raiser_index, hand_number, action_seq,
			last_hand, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, rs.ID, rs.SmallBlind, rs.BigBlind, rs.BuyIn, rs.MinPlayers, rs.MaxPlayers,
		rs.SidePots, rs.Seed, rs.TurnTimeoutMs, rs.Phase, rs.Pot, rs.CurrentBet,
		rs.CommunityCards, rs.Deck, rs.DealerIndex, rs.CurrentPlayerIndex,
		rs.LastRaiserIndex, rs.HandNumber, rs.ActionSeq, rs.LastHand, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert room %s: %w", rs.ID, err)
	}
	if err := insertPlayers(tx, rs.ID, players); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveSnapshot atomically replaces the state of a room, its seats and
// appends new log entries. The write only succeeds when the stored version
// equals expectVersion; the stored version is then incremented.
func (db *DB) SaveSnapshot(rs *RoomState, players []*PlayerState, log []LogEntry, expectVersion int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE rooms SET phase = ?, pot = ?, current_bet = ?, community_cards = ?, deck = ?,
			dealer_index = ?, current_player_index = ?, last_raiser_index = ?,
			hand_number = ?, action_seq = ?, last_hand = ?, version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, rs.Phase, rs.Pot, rs.CurrentBet, rs.CommunityCards, rs.Deck, rs.DealerIndex,
		rs.CurrentPlayerIndex, rs.LastRaiserIndex, rs.HandNumber, rs.ActionSeq,
		rs.LastHand, rs.UpdatedAt, rs.ID, expectVersion)
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", rs.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(1) FROM rooms WHERE id = ?`, rs.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, rs.ID)
		}
		return fmt.Errorf("%w: %s at version %d", ErrVersionConflict, rs.ID, expectVersion)
	}

	if _, err := tx.Exec(`DELETE FROM room_players WHERE room_id = ?`, rs.ID); err != nil {
		return fmt.Errorf("failed to clear seats of room %s: %w", rs.ID, err)
	}
	if err := insertPlayers(tx, rs.ID, players); err != nil {
		return err
	}

	// The log is append-only; entries already stored are skipped.
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO game_log (room_id, seq, player_id, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range log {
		if _, err := stmt.Exec(rs.ID, e.Seq, e.PlayerID, e.Message, e.Timestamp); err != nil {
			return fmt.Errorf("failed to append log of room %s: %w", rs.ID, err)
		}
	}

	return tx.Commit()
}

func insertPlayers(tx *sql.Tx, roomID string, players []*PlayerState) error {
	stmt, err := tx.Prepare(`
		INSERT INTO room_players (room_id, seat, player_id, name, balance, is_active,
			hole_cards, current_bet, total_bet, has_folded, has_acted, is_dealer,
			is_small_blind, is_big_blind, last_action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range players {
		_, err := stmt.Exec(roomID, p.Seat, p.PlayerID, p.Name, p.Balance, p.IsActive,
			p.HoleCards, p.CurrentBet, p.TotalBet, p.HasFolded, p.HasActed, p.IsDealer,
			p.IsSmallBlind, p.IsBigBlind, p.LastAction)
		if err != nil {
			return fmt.Errorf("failed to save seat %d of room %s: %w", p.Seat, roomID, err)
		}
	}
	return nil
}

// LoadRoomState returns the persisted state of a room.
func (db *DB) LoadRoomState(roomID string) (*RoomState, error) {
	var rs RoomState
	err := db.QueryRow(`
		SELECT id, small_blind, big_blind, buy_in, min_players, max_players, side_pots, seed,
			turn_timeout_ms, phase, pot, current_bet, community_cards, deck, dealer_index,
			current_player_index, last_raiser_index, hand_number, action_seq, last_hand,
			version, updated_at
		FROM rooms WHERE id = ?
	`, roomID).Scan(&rs.ID, &rs.SmallBlind, &rs.BigBlind, &rs.BuyIn, &rs.MinPlayers,
		&rs.MaxPlayers, &rs.SidePots, &rs.Seed, &rs.TurnTimeoutMs, &rs.Phase, &rs.Pot,
		&rs.CurrentBet, &rs.CommunityCards, &rs.Deck, &rs.DealerIndex,
		&rs.CurrentPlayerIndex, &rs.LastRaiserIndex, &rs.HandNumber, &rs.ActionSeq,
		&rs.LastHand, &rs.Version, &rs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return &rs, nil
}

// LoadPlayerStates returns the seats of a room in seat order.
func (db *DB) LoadPlayerStates(roomID string) ([]*PlayerState, error) {
	rows, err := db.Query(`
		SELECT seat, player_id, name, balance, is_active, hole_cards, current_bet, total_bet,
			has_folded, has_acted, is_dealer, is_small_blind, is_big_blind, last_action
		FROM room_players WHERE room_id = ? ORDER BY seat
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seats of room %s: %w", roomID, err)
	}
	defer rows.Close()

	var players []*PlayerState
	for rows.Next() {
		var p PlayerState
		var last sql.NullTime
		err := rows.Scan(&p.Seat, &p.PlayerID, &p.Name, &p.Balance, &p.IsActive,
			&p.HoleCards, &p.CurrentBet, &p.TotalBet, &p.HasFolded, &p.HasActed,
			&p.IsDealer, &p.IsSmallBlind, &p.IsBigBlind, &last)
		if err != nil {
			return nil, err
		}
		if last.Valid {
			p.LastAction = last.Time
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

// LoadGameLog returns the log of a room ordered by sequence.
func (db *DB) LoadGameLog(roomID string) ([]LogEntry, error) {
	rows, err := db.Query(`
		SELECT seq, player_id, message, created_at FROM game_log
		WHERE room_id = ? ORDER BY seq
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load log of room %s: %w", roomID, err)
	}
	defer rows.Close()

	var log []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Seq, &e.PlayerID, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		log = append(log, e)
	}
	return log, rows.Err()
}

// GetAllRoomIDs returns the IDs of every stored room.
func (db *DB) GetAllRoomIDs() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM rooms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

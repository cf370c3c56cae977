package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/quartz"
	"github.com/decred/slog"
	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/server/internal/db"
)

// ErrVersionConflict is returned by Save when the room was saved by someone
// else since it was loaded.
var ErrVersionConflict = db.ErrVersionConflict

// ErrRoomExists is returned by Create for an ID already in use.
var ErrRoomExists = errors.New("room already exists")

// Store persists rooms. Load returns a table the caller owns; Save stores
// it when its Version matches the stored one and bumps the Version of the
// given table on success.
type Store interface {
	Load(ctx context.Context, roomID string) (*poker.Table, error)
	Save(ctx context.Context, t *poker.Table) error
	Create(ctx context.Context, t *poker.Table) error
	RoomIDs(ctx context.Context) ([]string, error)
}

// MemoryStore keeps rooms in memory. It is used by tests and by servers
// started without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*poker.Table
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*poker.Table)}
}

func (m *MemoryStore) Load(ctx context.Context, roomID string) (*poker.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", poker.ErrRoomNotFound, roomID)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, t *poker.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rooms[t.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", poker.ErrRoomNotFound, t.ID())
	}
	if cur.Version != t.Version {
		return fmt.Errorf("%w: %s at version %d, stored %d", ErrVersionConflict, t.ID(), t.Version, cur.Version)
	}
	t.Version++
	m.rooms[t.ID()] = t.Clone()
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, t *poker.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[t.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrRoomExists, t.ID())
	}
	t.Version = 1
	m.rooms[t.ID()] = t.Clone()
	return nil
}

func (m *MemoryStore) RoomIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SQLStore persists rooms through a Database.
type SQLStore struct {
	db    Database
	log   slog.Logger
	clock quartz.Clock

	// last log sequence known to be stored, per room
	mu      sync.Mutex
	logSeqs map[string]int64
}

// NewSQLStore returns a store backed by the given database.
func NewSQLStore(database Database, log slog.Logger, clock quartz.Clock) *SQLStore {
	if log == nil {
		log = slog.Disabled
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &SQLStore{
		db:      database,
		log:     log,
		clock:   clock,
		logSeqs: make(map[string]int64),
	}
}

func (s *SQLStore) Load(ctx context.Context, roomID string) (*poker.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rs, err := s.db.LoadRoomState(roomID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", poker.ErrRoomNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	players, err := s.db.LoadPlayerStates(roomID)
	if err != nil {
		return nil, err
	}
	entries, err := s.db.LoadGameLog(roomID)
	if err != nil {
		return nil, err
	}
	t, err := tableFromStates(rs, players, entries)
	if err != nil {
		return nil, err
	}
	s.setLogSeq(roomID, lastSeq(t))
	return t, nil
}

func (s *SQLStore) Save(ctx context.Context, t *poker.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rs, err := roomStateFromTable(t, s.clock.Now())
	if err != nil {
		return err
	}
	entries := logEntriesFromTable(t, s.logSeq(t.ID()))
	err = s.db.SaveSnapshot(rs, playerStatesFromTable(t), entries, t.Version)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", poker.ErrRoomNotFound, t.ID())
	}
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", t.ID(), err)
	}
	t.Version++
	s.setLogSeq(t.ID(), lastSeq(t))
	s.log.Tracef("Saved room %s at version %d (%d new log entries)", t.ID(), t.Version, len(entries))
	return nil
}

func (s *SQLStore) Create(ctx context.Context, t *poker.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.db.LoadRoomState(t.ID()); err == nil {
		return fmt.Errorf("%w: %s", ErrRoomExists, t.ID())
	}
	rs, err := roomStateFromTable(t, s.clock.Now())
	if err != nil {
		return err
	}
	if err := s.db.CreateRoom(rs, playerStatesFromTable(t)); err != nil {
		return fmt.Errorf("failed to create room %s: %w", t.ID(), err)
	}
	t.Version = 1
	s.log.Infof("Created room %s", t.ID())
	return nil
}

func (s *SQLStore) RoomIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.db.GetAllRoomIDs()
}

func (s *SQLStore) logSeq(roomID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logSeqs[roomID]
}

func (s *SQLStore) setLogSeq(roomID string, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeqs[roomID] = seq
}

func lastSeq(t *poker.Table) int64 {
	if n := len(t.GameLog); n > 0 {
		return t.GameLog[n-1].Seq
	}
	return 0
}

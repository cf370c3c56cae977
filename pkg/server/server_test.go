package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/pokerroom/pkg/client"
	"github.com/vctt94/pokerroom/pkg/logging"
	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/protocol"
)

func TestServerJoinStartAndAct(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	s := newTestServer(t, NewMemoryStore(), rec)
	roomID := seatPlayers(t, s, testRoomConfig("r1"), 3)

	tbl, events, err := s.StartHand(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tbl.HandNumber)
	assert.Equal(t, poker.EventHandStarted, events[0].Type)
	rec.waitFor(t, poker.EventHandStarted)

	_, _, err = s.StartHand(ctx, roomID)
	assert.ErrorIs(t, err, poker.ErrHandInProgress)

	cur := tbl.CurrentPlayer()
	require.NotNil(t, cur)
	var other string
	for _, p := range tbl.Players {
		if p.ID != cur.ID {
			other = p.ID
			break
		}
	}

	before, err := s.View(ctx, roomID, other)
	require.NoError(t, err)
	_, _, err = s.Act(ctx, roomID, other, poker.ActionCall, 0)
	assert.ErrorIs(t, err, poker.ErrNotYourTurn)
	after, err := s.View(ctx, roomID, other)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	_, _, err = s.Act(ctx, roomID, cur.ID, poker.ActionTimeout, 0)
	assert.ErrorIs(t, err, poker.ErrInvalidAction)

	tbl, events, err = s.Act(ctx, roomID, cur.ID, poker.ActionCall, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, poker.EventCall, events[0].Type)
	assert.Equal(t, int64(1), tbl.ActionSeq)
	rec.waitFor(t, poker.EventCall)

	view, err := s.View(ctx, roomID, cur.ID)
	require.NoError(t, err)
	assert.Equal(t, tbl.Version, view.Version)
	for _, p := range view.Players {
		assert.Equal(t, 2, p.CardCount)
		if p.ID == cur.ID {
			assert.Len(t, p.HoleCards, 2)
		} else {
			assert.Empty(t, p.HoleCards)
		}
	}
}

func TestServerJoinLeave(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, NewMemoryStore(), newRecorder())
	roomID, err := s.CreateRoom(ctx, testRoomConfig(""))
	require.NoError(t, err)
	_, err = uuid.Parse(roomID)
	assert.NoError(t, err)

	tbl, events, err := s.Join(ctx, roomID, "", "anon", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, poker.EventPlayerJoined, events[0].Type)
	id := events[0].PlayerID
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, "anon", tbl.GetPlayer(id).Name)

	_, _, err = s.Join(ctx, roomID, id, "again", 0)
	assert.ErrorIs(t, err, poker.ErrAlreadySeated)

	tbl, events, err = s.Leave(ctx, roomID, id)
	require.NoError(t, err)
	assert.Empty(t, tbl.Players)
	assert.Equal(t, poker.EventPlayerLeft, events[0].Type)
	assert.Equal(t, int64(100), events[0].Amount)

	_, _, err = s.Leave(ctx, roomID, id)
	assert.ErrorIs(t, err, poker.ErrPlayerNotFound)
}

func TestServerUnknownRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, NewMemoryStore(), newRecorder())

	_, _, err := s.Join(ctx, "nope", "p0", "", 0)
	assert.ErrorIs(t, err, poker.ErrRoomNotFound)
	_, err = s.View(ctx, "nope", "p0")
	assert.ErrorIs(t, err, poker.ErrRoomNotFound)
}

func TestServerEnsureRooms(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)
	s := newTestServer(t, store, newRecorder())

	cfg := DefaultConfig()
	cfg.Rooms = append(cfg.Rooms, RoomConfig{ID: "high", SmallBlind: 5, BigBlind: 10})
	require.NoError(t, s.EnsureRooms(ctx, cfg))

	_, _, err := s.Join(ctx, "main", "p0", "", 0)
	require.NoError(t, err)

	// Running again keeps the stored rooms and their players.
	require.NoError(t, s.EnsureRooms(ctx, cfg))
	ids, err := s.RoomIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "main"}, ids)

	view, err := s.View(ctx, "main", "p0")
	require.NoError(t, err)
	assert.Len(t, view.Players, 1)
	high, err := s.View(ctx, "high", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), high.BuyIn)
}

func TestServerTurnTimeout(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	s := newTestServer(t, NewMemoryStore(), rec)

	cfg := testRoomConfig("timed")
	cfg.TurnTimeout = 50 * time.Millisecond
	roomID := seatPlayers(t, s, cfg, 3)

	tbl, _, err := s.StartHand(ctx, roomID)
	require.NoError(t, err)
	first := tbl.CurrentPlayer().ID

	ev := rec.waitFor(t, poker.EventTimeout)
	assert.Equal(t, first, ev.PlayerID)
	assert.Equal(t, roomID, ev.TableID)
}

func TestServerStaleTimeoutIgnored(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, NewMemoryStore(), newRecorder())
	roomID := seatPlayers(t, s, testRoomConfig("r1"), 3)

	tbl, _, err := s.StartHand(ctx, roomID)
	require.NoError(t, err)
	first := tbl.CurrentPlayer().ID
	tbl, _, err = s.Act(ctx, roomID, first, poker.ActionCall, 0)
	require.NoError(t, err)

	w, err := s.room(ctx, roomID)
	require.NoError(t, err)

	// Scheduled for the first turn, fired after it was played.
	got, events, err := w.submit(ctx, &intent{kind: intentTimeout, playerID: first, hand: 1, seq: 0})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, tbl.Version, got.Version)

	cur := tbl.CurrentPlayer().ID
	got, events, err = w.submit(ctx, &intent{kind: intentTimeout, playerID: cur, hand: 1, seq: tbl.ActionSeq})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, poker.EventTimeout, events[0].Type)
	assert.True(t, got.GetPlayer(cur).HasFolded)
}

func TestServerAbortsHandOnStructuralError(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	store := NewMemoryStore()
	s := newTestServer(t, store, rec)
	roomID := seatPlayers(t, s, testRoomConfig("r1"), 2)

	_, _, err := s.StartHand(ctx, roomID)
	require.NoError(t, err)

	// Empty the deck behind the worker's back so the flop cannot be dealt.
	tbl, err := store.Load(ctx, roomID)
	require.NoError(t, err)
	tbl.Deck = poker.NewDeckFromCards(nil, nil)
	require.NoError(t, store.Save(ctx, tbl))

	tbl, _, err = s.Act(ctx, roomID, tbl.CurrentPlayer().ID, poker.ActionCall, 0)
	require.NoError(t, err)
	tbl, events, err := s.Act(ctx, roomID, tbl.CurrentPlayer().ID, poker.ActionCheck, 0)
	require.ErrorIs(t, err, poker.ErrInsufficientCards)
	assert.True(t, poker.IsStructural(err))
	require.NotNil(t, tbl)
	require.Len(t, events, 1)
	assert.Equal(t, poker.EventHandAborted, events[0].Type)
	rec.waitFor(t, poker.EventHandAborted)

	assert.Equal(t, poker.PhaseWaiting, tbl.Phase)
	assert.Zero(t, tbl.Pot)
	for _, p := range tbl.Players {
		assert.Equal(t, int64(100), p.Balance)
	}

	stored, err := store.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, tbl.Version, stored.Version)
	assert.Equal(t, poker.PhaseWaiting, stored.Phase)
}

// flakyStore fails every save while failing is set.
type flakyStore struct {
	*MemoryStore
	failing atomic.Bool
}

func (f *flakyStore) Save(ctx context.Context, t *poker.Table) error {
	if f.failing.Load() {
		return errors.New("disk on fire")
	}
	return f.MemoryStore.Save(ctx, t)
}

func TestServerFailedSavePublishesNothing(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	s := newTestServer(t, store, rec)
	roomID := seatPlayers(t, s, testRoomConfig("r1"), 2)
	rec.waitFor(t, poker.EventPlayerJoined)

	// Let the join batches drain before counting.
	require.Eventually(t, func() bool { return rec.count() == 2 }, waitTimeout, 10*time.Millisecond)

	store.failing.Store(true)
	_, _, err := s.StartHand(ctx, roomID)
	assert.ErrorContains(t, err, "disk on fire")

	store.failing.Store(false)
	view, err := s.View(ctx, roomID, "p0")
	require.NoError(t, err)
	assert.Equal(t, poker.PhaseWaiting, view.Phase)
	assert.Zero(t, view.HandNumber)
	assert.Equal(t, 2, rec.count())
}

func TestServerSerializesConcurrentIntents(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)
	s := newTestServer(t, store, newRecorder())
	roomID := seatPlayers(t, s, testRoomConfig("busy"), 4)
	_, _, err := s.StartHand(ctx, roomID)
	require.NoError(t, err)

	var applied, rejected atomic.Int64
	errs := make(chan error, 4*2*50)
	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(playerID string) {
				defer wg.Done()
				for _, action := range []poker.Action{poker.ActionCall, poker.ActionCheck} {
					_, _, err := s.Act(ctx, roomID, playerID, action, 0)
					switch {
					case err == nil:
						applied.Add(1)
					case poker.IsValidation(err):
						rejected.Add(1)
					default:
						errs <- err
					}
				}
			}(playerName(i))
		}
		wg.Wait()
	}
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	require.Positive(t, applied.Load())
	assert.Equal(t, int64(4*2*50), applied.Load()+rejected.Load())

	stored, err := store.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), stored.TotalChips())
	// create + 4 joins + start + one save per applied action
	assert.Equal(t, 6+applied.Load(), stored.Version)

	view, err := s.View(ctx, roomID, "p0")
	require.NoError(t, err)
	assert.Equal(t, stored.Version, view.Version)
}

// gatedStore holds loads of one room until released.
type gatedStore struct {
	*MemoryStore
	slowID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, roomID string) (*poker.Table, error) {
	if roomID == g.slowID {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return g.MemoryStore.Load(ctx, roomID)
}

func TestServerSlowRoomLoadDoesNotBlockOtherRooms(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{
		MemoryStore: NewMemoryStore(),
		slowID:      "slow",
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	s := newTestServer(t, store, newRecorder())
	_, err := s.CreateRoom(ctx, testRoomConfig("slow"))
	require.NoError(t, err)
	_, err = s.CreateRoom(ctx, testRoomConfig("fast"))
	require.NoError(t, err)

	released := false
	release := func() {
		if !released {
			released = true
			close(store.release)
		}
	}
	defer release()

	slowDone := make(chan error, 1)
	go func() {
		_, err := s.View(ctx, "slow", "p0")
		slowDone <- err
	}()
	select {
	case <-store.entered:
	case <-time.After(waitTimeout):
		t.Fatal("slow room was never loaded")
	}

	fastDone := make(chan error, 1)
	go func() {
		_, _, err := s.Join(ctx, "fast", "p0", "", 0)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("join on another room waited for the slow load")
	}

	release()
	require.NoError(t, <-slowDone)
}

func TestServerEnsureRoomsResumesHandInProgress(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	// A hand left running by a previous process.
	cfg := testRoomConfig("main")
	cfg.TurnTimeout = 50 * time.Millisecond
	eng := poker.NewEngine(slog.Disabled, quartz.NewReal())
	tbl := poker.NewTable(cfg.WithDefaults())
	for i := 0; i < 2; i++ {
		var err error
		tbl, _, err = eng.Seat(tbl, playerName(i), "", 0)
		require.NoError(t, err)
	}
	require.NoError(t, store.Create(ctx, tbl))
	started, _, err := eng.StartHand(tbl)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, started))

	rec := newRecorder()
	s := newTestServer(t, store, rec)
	require.NoError(t, s.EnsureRooms(ctx, &Config{Server: &ServerSettings{}}))

	ev := rec.waitFor(t, poker.EventTimeout)
	assert.Equal(t, started.CurrentPlayer().ID, ev.PlayerID)
	assert.Equal(t, "main", ev.TableID)
}

func TestServerLogsRoomStatusAtDebug(t *testing.T) {
	ctx := context.Background()
	var out syncBuffer
	lb, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: "info,ROOM=debug", Output: &out})
	require.NoError(t, err)
	s := NewServer(NewMemoryStore(), lb, Options{Broadcaster: newRecorder()})
	t.Cleanup(s.Stop)

	roomID := seatPlayers(t, s, testRoomConfig("r1"), 2)
	_, _, err = s.StartHand(ctx, roomID)
	require.NoError(t, err)

	logged := out.String()
	assert.Contains(t, logged, "Table r1 (waiting)")
	assert.Contains(t, logged, "Table r1 (preflop)")
	assert.Contains(t, logged, "Hand #1  Pot: 3")
	assert.Contains(t, logged, "p0  chips=")
}

func TestServerStop(t *testing.T) {
	ctx := context.Background()
	s := NewServer(NewMemoryStore(), newTestLogBackend(t), Options{})
	roomID := seatPlayers(t, s, testRoomConfig("r1"), 1)

	s.Stop()
	s.Stop()
	_, _, err := s.Join(ctx, roomID, "late", "", 0)
	assert.ErrorIs(t, err, ErrServerStopped)
}

func nextUpdate(t *testing.T, c *client.Client) *protocol.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		if !ok {
			t.Fatalf("connection closed: %v", c.Err())
		}
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("no update received")
	}
	return nil
}

func TestServerWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := newTestServer(t, NewMemoryStore(), nil)
	roomID, err := s.CreateRoom(ctx, testRoomConfig("ws"))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	alice, err := client.Dial(ctx, ts.URL, roomID, "alice", slog.Disabled)
	require.NoError(t, err)
	defer alice.Close()

	initial := nextUpdate(t, alice)
	assert.Equal(t, protocol.MsgUpdate, initial.Type)
	require.NotNil(t, initial.State)
	assert.Equal(t, roomID, initial.State.RoomID)
	assert.Empty(t, initial.State.Players)

	view, err := alice.Join(ctx, "Alice", 0)
	require.NoError(t, err)
	require.Len(t, view.Players, 1)
	assert.Equal(t, "Alice", view.Players[0].Name)

	_, err = alice.Join(ctx, "Alice", 0)
	var rerr *client.ReplyError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "validation", rerr.Kind)

	bob, err := client.Dial(ctx, ts.URL, roomID, "bob", slog.Disabled)
	require.NoError(t, err)
	defer bob.Close()
	nextUpdate(t, bob)
	_, err = bob.Join(ctx, "Bob", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Hub().Connected(roomID))

	view, err = alice.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.HandNumber)
	assert.True(t, view.Phase.IsBetting())

	// Bob sees the hand through a pushed update.
	var pushed *protocol.TableView
	for pushed == nil {
		msg := nextUpdate(t, bob)
		if msg.State != nil && msg.State.HandNumber == 1 {
			pushed = msg.State
		}
	}
	for _, p := range pushed.Players {
		assert.Equal(t, 2, p.CardCount)
		if p.ID == "bob" {
			assert.Len(t, p.HoleCards, 2)
		} else {
			assert.Empty(t, p.HoleCards)
		}
	}

	state, err := bob.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, view.Version, state.Version)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK rooms=1 connections=2\n", string(body))

	_, err = client.Dial(ctx, ts.URL, "missing", "carol", slog.Disabled)
	assert.Error(t, err)

	resp, err = http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package server

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctt94/pokerroom/pkg/logging"
	"github.com/vctt94/pokerroom/pkg/poker"
)

const waitTimeout = 3 * time.Second

func newTestLogBackend(t *testing.T) *logging.LogBackend {
	t.Helper()
	lb, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: "info", Output: io.Discard})
	require.NoError(t, err)
	return lb
}

// syncBuffer is a log sink safe for the room and event goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "rooms.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewSQLStore(database, nil, nil)
}

func testRoomConfig(id string) poker.TableConfig {
	return poker.TableConfig{
		ID:         id,
		SmallBlind: 1,
		BigBlind:   2,
		BuyIn:      100,
		MaxPlayers: 6,
		Seed:       7,
	}
}

// recorder is a Broadcaster that keeps every batch it receives.
type recorder struct {
	mu      sync.Mutex
	batches []*EventBatch
	ch      chan *EventBatch
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *EventBatch, 1024)}
}

func (r *recorder) Broadcast(b *EventBatch) {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
	select {
	case r.ch <- b:
	default:
	}
}

// waitFor returns the first event of type typ received from now on.
func (r *recorder) waitFor(t *testing.T, typ poker.EventType) poker.Event {
	t.Helper()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case b := <-r.ch:
			for _, ev := range b.Events {
				if ev.Type == typ {
					return ev
				}
			}
		case <-timer.C:
			t.Fatalf("no %s event within %v", typ, waitTimeout)
		}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestServer(t *testing.T, store Store, b Broadcaster) *Server {
	t.Helper()
	s := NewServer(store, newTestLogBackend(t), Options{Broadcaster: b, EventWorkers: 2, EventQueueSize: 64})
	t.Cleanup(s.Stop)
	return s
}

// seatPlayers creates a room and seats n players named p0..pn-1.
func seatPlayers(t *testing.T, s *Server, cfg poker.TableConfig, n int) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateRoom(ctx, cfg)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, _, err := s.Join(ctx, id, playerName(i), "", 0)
		require.NoError(t, err)
	}
	return id
}

func playerName(i int) string {
	return "p" + string(rune('0'+i))
}

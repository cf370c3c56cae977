package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/quartz"
	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vctt94/pokerroom/pkg/logging"
	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/protocol"
)

// Options tunes a Server. Zero values take defaults.
type Options struct {
	Clock          quartz.Clock
	EventWorkers   int
	EventQueueSize int
	// Broadcaster replaces the websocket hub as the receiver of room
	// updates.
	Broadcaster Broadcaster
}

// Server owns the rooms. Each room is driven by its own worker, which is
// the only writer of the room's state.
type Server struct {
	log        slog.Logger
	roomLog    slog.Logger
	wsLog      slog.Logger
	logBackend *logging.LogBackend

	store    Store
	engine   *poker.Engine
	clock    quartz.Clock
	events   *EventProcessor
	hub      *Hub
	upgrader websocket.Upgrader

	mu      sync.Mutex
	rooms   map[string]*roomWorker
	stopped bool
}

// NewServer creates a room server on top of store.
func NewServer(store Store, logBackend *logging.LogBackend, opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	if opts.EventWorkers == 0 {
		opts.EventWorkers = 4
	}
	if opts.EventQueueSize == 0 {
		opts.EventQueueSize = 1000
	}

	s := &Server{
		log:        logBackend.Logger("SRVR"),
		roomLog:    logBackend.Logger("ROOM"),
		wsLog:      logBackend.Logger("WSKT"),
		logBackend: logBackend,
		store:      store,
		engine:     poker.NewEngine(logBackend.Logger("ENGN"), clock),
		clock:      clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*roomWorker),
	}
	s.hub = NewHub(s.wsLog, clock)

	var b Broadcaster = s.hub
	if opts.Broadcaster != nil {
		b = opts.Broadcaster
	}
	s.events = NewEventProcessor(logBackend.Logger("EVNT"), b, opts.EventQueueSize, opts.EventWorkers)
	s.events.Start()
	return s
}

// Hub returns the websocket hub of the server.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stop stops every room worker, then delivers the pending events and
// closes the client connections.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := make([]*roomWorker, 0, len(s.rooms))
	for _, w := range s.rooms {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *roomWorker) {
			defer wg.Done()
			w.stop()
		}(w)
	}
	wg.Wait()

	s.events.Stop()
	s.hub.CloseAll()
	s.log.Infof("Server stopped")
}

// CreateRoom stores a new waiting room. An empty ID gets a generated one.
func (s *Server) CreateRoom(ctx context.Context, cfg poker.TableConfig) (string, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	t := poker.NewTable(cfg)
	if err := s.store.Create(ctx, t); err != nil {
		return "", err
	}
	s.log.Infof("Room %s created: blinds %d/%d, buy-in %d, %d-%d players",
		cfg.ID, cfg.SmallBlind, cfg.BigBlind, cfg.BuyIn, cfg.MinPlayers, cfg.MaxPlayers)
	return cfg.ID, nil
}

// EnsureRooms creates the rooms declared in the config that are not stored
// yet, then resumes the stored rooms that were left mid-hand.
func (s *Server) EnsureRooms(ctx context.Context, cfg *Config) error {
	ids, err := s.store.RoomIDs(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	for _, r := range cfg.Rooms {
		if existing[r.ID] {
			s.log.Debugf("Room %s already stored", r.ID)
			continue
		}
		if _, err := s.CreateRoom(ctx, cfg.TableConfig(r)); err != nil {
			return fmt.Errorf("failed to create room %s: %w", r.ID, err)
		}
	}
	return s.ResumeRooms(ctx)
}

// ResumeRooms starts the workers of stored rooms with a hand in progress so
// their turn timers run without waiting for a player's intent.
func (s *Server) ResumeRooms(ctx context.Context) error {
	ids, err := s.store.RoomIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t, err := s.store.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load room %s: %w", id, err)
		}
		if !t.IsHandInProgress() {
			continue
		}
		if _, err := s.room(ctx, id); err != nil {
			return err
		}
		s.log.Infof("Room %s resumed at hand #%d", id, t.HandNumber)
	}
	return nil
}

// RoomIDs returns the stored rooms.
func (s *Server) RoomIDs(ctx context.Context) ([]string, error) {
	return s.store.RoomIDs(ctx)
}

// room returns the worker of a room, starting it on first use. The room is
// loaded without holding the lock; only workers write rooms, so a load that
// finds no worker afterwards is still current.
func (s *Server) room(ctx context.Context, roomID string) (*roomWorker, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrServerStopped
	}
	if w, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return w, nil
	}
	s.mu.Unlock()

	t, err := s.store.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrServerStopped
	}
	if w, ok := s.rooms[roomID]; ok {
		return w, nil
	}
	w := newRoomWorker(s, roomID)
	// A room restored mid-hand gets its turn timer back.
	w.scheduleTimeout(t)
	s.rooms[roomID] = w
	go w.run()
	return w, nil
}

func (s *Server) submit(ctx context.Context, roomID string, in *intent) (*poker.Table, []poker.Event, error) {
	w, err := s.room(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return w.submit(ctx, in)
}

// Join seats a player. An empty playerID gets a generated one, returned
// in the player_joined event.
func (s *Server) Join(ctx context.Context, roomID, playerID, name string, buyIn int64) (*poker.Table, []poker.Event, error) {
	if playerID == "" {
		playerID = uuid.New().String()
	}
	return s.submit(ctx, roomID, &intent{kind: intentJoin, playerID: playerID, name: name, buyIn: buyIn})
}

// Leave unseats a player.
func (s *Server) Leave(ctx context.Context, roomID, playerID string) (*poker.Table, []poker.Event, error) {
	return s.submit(ctx, roomID, &intent{kind: intentLeave, playerID: playerID})
}

// StartHand deals a new hand in a waiting room.
func (s *Server) StartHand(ctx context.Context, roomID string) (*poker.Table, []poker.Event, error) {
	return s.submit(ctx, roomID, &intent{kind: intentStart})
}

// Act applies a betting action of a player.
func (s *Server) Act(ctx context.Context, roomID, playerID string, action poker.Action, amount int64) (*poker.Table, []poker.Event, error) {
	if action == poker.ActionTimeout {
		return nil, nil, fmt.Errorf("%w: timeouts are issued by the server", poker.ErrInvalidAction)
	}
	return s.submit(ctx, roomID, &intent{kind: intentAct, playerID: playerID, action: action, amount: amount})
}

// Reveal shows the cards of a player who won the last hand by fold.
func (s *Server) Reveal(ctx context.Context, roomID, playerID string) (*poker.Table, []poker.Event, error) {
	return s.submit(ctx, roomID, &intent{kind: intentReveal, playerID: playerID})
}

// View returns the room as seen by playerID. The read is ordered after
// the intents already queued on the room.
func (s *Server) View(ctx context.Context, roomID, playerID string) (*protocol.TableView, error) {
	t, _, err := s.submit(ctx, roomID, &intent{kind: intentView, playerID: playerID})
	if err != nil {
		return nil, err
	}
	return protocol.NewTableView(t, playerID), nil
}

// handleClientMessage runs a websocket message and builds its reply.
func (s *Server) handleClientMessage(ctx context.Context, roomID, playerID string, msg *protocol.ClientMessage) *protocol.ServerMessage {
	var (
		t   *poker.Table
		err error
	)
	switch msg.Type {
	case protocol.MsgJoin:
		t, _, err = s.Join(ctx, roomID, playerID, msg.Name, msg.BuyIn)
	case protocol.MsgLeave:
		t, _, err = s.Leave(ctx, roomID, playerID)
	case protocol.MsgStart:
		t, _, err = s.StartHand(ctx, roomID)
	case protocol.MsgAct:
		var action poker.Action
		action, err = poker.ParseAction(msg.Action)
		if err == nil {
			t, _, err = s.Act(ctx, roomID, playerID, action, msg.Amount)
		}
	case protocol.MsgReveal:
		t, _, err = s.Reveal(ctx, roomID, playerID)
	case protocol.MsgState:
		t, _, err = s.submit(ctx, roomID, &intent{kind: intentView, playerID: playerID})
	default:
		err = fmt.Errorf("%w: unknown message type %q", poker.ErrInvalidAction, msg.Type)
	}

	reply := &protocol.ServerMessage{
		Type:      protocol.MsgReply,
		RequestID: msg.RequestID,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		reply.Error = err.Error()
		if k := poker.KindOf(err); k != 0 {
			reply.ErrorKind = k.String()
		}
	}
	if t != nil {
		reply.State = protocol.NewTableView(t, playerID)
	}
	return reply
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// handleWebSocket upgrades GET /ws?room=<id>&player=<id>.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	playerID := r.URL.Query().Get("player")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		playerID = uuid.New().String()
	}

	view, err := s.View(r.Context(), roomID, playerID)
	switch {
	case errors.Is(err, poker.ErrRoomNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wsLog.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	c := NewConnection(ws, s, roomID, playerID)
	s.hub.Register(c)
	c.Start()
	c.Send(&protocol.ServerMessage{
		Type:      protocol.MsgUpdate,
		State:     view,
		Timestamp: s.clock.Now(),
	})

	go func() {
		<-c.Done()
		s.hub.Unregister(c)
	}()
}

// handleHealth reports the running rooms and their websocket clients.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stopped := s.stopped
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if stopped {
		http.Error(w, "stopping", http.StatusServiceUnavailable)
		return
	}
	conns := 0
	for _, id := range ids {
		conns += s.hub.Connected(id)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK rooms=%d connections=%d\n", len(ids), conns)
}

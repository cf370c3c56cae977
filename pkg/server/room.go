package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/weedbox/timebank"
)

// ErrServerStopped is returned for intents submitted to a stopped server.
var ErrServerStopped = errors.New("server stopped")

// inboxSize bounds the intents queued on a room.
const inboxSize = 64

// storeTimeout bounds a single load or save of a room.
const storeTimeout = 5 * time.Second

type intentKind int

const (
	intentJoin intentKind = iota
	intentLeave
	intentStart
	intentAct
	intentReveal
	intentTimeout
	intentView
)

func (k intentKind) String() string {
	switch k {
	case intentJoin:
		return "join"
	case intentLeave:
		return "leave"
	case intentStart:
		return "start"
	case intentAct:
		return "act"
	case intentReveal:
		return "reveal"
	case intentTimeout:
		return "timeout"
	case intentView:
		return "view"
	}
	return "unknown"
}

// intent is a request on a room. Intents of a room are applied one at a
// time in arrival order.
type intent struct {
	kind     intentKind
	playerID string
	name     string
	buyIn    int64
	action   poker.Action
	amount   int64

	// timeouts only apply to the turn they were scheduled for
	hand int64
	seq  int64

	reply chan intentResult // nil when nobody waits for the outcome
}

type intentResult struct {
	table  *poker.Table
	events []poker.Event
	err    error
}

// roomWorker is the single writer of a room.
type roomWorker struct {
	id    string
	srv   *Server
	log   slog.Logger
	inbox chan *intent
	quit  chan struct{}
	done  chan struct{}

	// turn timer, only touched by the worker goroutine
	tb *timebank.TimeBank
}

func newRoomWorker(srv *Server, roomID string) *roomWorker {
	return &roomWorker{
		id:    roomID,
		srv:   srv,
		log:   srv.roomLog,
		inbox: make(chan *intent, inboxSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		tb:    timebank.NewTimeBank(),
	}
}

func (w *roomWorker) run() {
	defer close(w.done)
	w.log.Debugf("Room %s worker started", w.id)

	for {
		select {
		case in := <-w.inbox:
			w.handle(in)
		case <-w.quit:
			w.tb.Cancel()
			w.drain()
			w.log.Debugf("Room %s worker stopped", w.id)
			return
		}
	}
}

// drain rejects the intents still queued after a stop.
func (w *roomWorker) drain() {
	for {
		select {
		case in := <-w.inbox:
			w.respond(in, intentResult{err: ErrServerStopped})
		default:
			return
		}
	}
}

// submit queues an intent and waits for its outcome.
func (w *roomWorker) submit(ctx context.Context, in *intent) (*poker.Table, []poker.Event, error) {
	in.reply = make(chan intentResult, 1)
	select {
	case w.inbox <- in:
	case <-w.quit:
		return nil, nil, ErrServerStopped
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	select {
	case res := <-in.reply:
		return res.table, res.events, res.err
	case <-w.done:
		// The worker may have answered right before exiting.
		select {
		case res := <-in.reply:
			return res.table, res.events, res.err
		default:
			return nil, nil, ErrServerStopped
		}
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// post queues an intent without waiting. Used by timers, which must not
// block on the worker.
func (w *roomWorker) post(in *intent) {
	select {
	case w.inbox <- in:
	case <-w.quit:
	default:
		w.log.Warnf("Room %s inbox full, dropping %s intent", w.id, in.kind)
	}
}

func (w *roomWorker) respond(in *intent, res intentResult) {
	if in.reply != nil {
		in.reply <- res
	}
}

// handle runs one intent: load, apply on a copy, save, publish, reply.
// Nothing is published when the save fails.
func (w *roomWorker) handle(in *intent) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	t, err := w.srv.store.Load(ctx, w.id)
	if err != nil {
		w.log.Errorf("Room %s: failed to load for %s: %v", w.id, in.kind, err)
		w.respond(in, intentResult{err: err})
		return
	}

	if in.kind == intentView {
		w.respond(in, intentResult{table: t})
		return
	}

	next, events, err := w.apply(t, in)
	if err != nil {
		if !poker.IsStructural(err) || !t.IsHandInProgress() {
			w.log.Debugf("Room %s: %s by %s rejected: %v", w.id, in.kind, in.playerID, err)
			w.respond(in, intentResult{err: err})
			return
		}
		w.log.Errorf("Room %s: %s by %s failed, aborting hand #%d: %v",
			w.id, in.kind, in.playerID, t.HandNumber, err)
		next, events = w.srv.engine.AbortHand(t, err.Error())
		if serr := w.commit(ctx, next, events); serr != nil {
			w.respond(in, intentResult{err: serr})
			return
		}
		w.respond(in, intentResult{table: next, events: events, err: err})
		return
	}
	if next == nil {
		// stale timeout
		w.respond(in, intentResult{table: t})
		return
	}

	if err := w.commit(ctx, next, events); err != nil {
		w.respond(in, intentResult{err: err})
		return
	}
	w.respond(in, intentResult{table: next, events: events})
}

func (w *roomWorker) apply(t *poker.Table, in *intent) (*poker.Table, []poker.Event, error) {
	eng := w.srv.engine
	switch in.kind {
	case intentJoin:
		return eng.Seat(t, in.playerID, in.name, in.buyIn)
	case intentLeave:
		return eng.Unseat(t, in.playerID)
	case intentStart:
		return eng.StartHand(t)
	case intentAct:
		return eng.ApplyAction(t, in.playerID, in.action, in.amount)
	case intentReveal:
		return eng.Reveal(t, in.playerID)
	case intentTimeout:
		cur := t.CurrentPlayer()
		if !t.Phase.IsBetting() || cur == nil || t.HandNumber != in.hand ||
			t.ActionSeq != in.seq || cur.ID != in.playerID {
			w.log.Debugf("Room %s: ignoring stale timeout of %s", w.id, in.playerID)
			return nil, nil, nil
		}
		w.log.Infof("Room %s: %s ran out of time", w.id, cur.Name)
		return eng.ApplyAction(t, cur.ID, poker.ActionTimeout, 0)
	}
	return nil, nil, fmt.Errorf("%w: unknown intent %d", poker.ErrInvalidAction, in.kind)
}

// commit saves the new state, publishes its events and re-arms the turn
// timer.
func (w *roomWorker) commit(ctx context.Context, next *poker.Table, events []poker.Event) error {
	if err := w.srv.store.Save(ctx, next); err != nil {
		w.log.Errorf("Room %s: %v", w.id, err)
		return err
	}
	if w.log.Level() <= slog.LevelDebug {
		w.log.Debugf("Room %s v%d:\n%s", w.id, next.Version, next.GetStatus())
	}
	w.srv.events.Publish(&EventBatch{RoomID: w.id, Table: next, Events: events})
	w.scheduleTimeout(next)
	return nil
}

// scheduleTimeout arms the turn timer of the player to act, replacing any
// previous one.
func (w *roomWorker) scheduleTimeout(t *poker.Table) {
	w.tb.Cancel()

	d := t.Config.TurnTimeout
	cur := t.CurrentPlayer()
	if d <= 0 || cur == nil || !t.Phase.IsBetting() {
		return
	}

	timeout := &intent{
		kind:     intentTimeout,
		playerID: cur.ID,
		hand:     t.HandNumber,
		seq:      t.ActionSeq,
	}
	err := w.tb.NewTask(d, func(isCancelled bool) {
		if isCancelled {
			return
		}
		w.post(timeout)
	})
	if err != nil {
		w.log.Errorf("Room %s: failed to arm turn timer: %v", w.id, err)
	}
}

func (w *roomWorker) stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.done
}

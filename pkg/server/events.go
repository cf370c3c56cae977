package server

import (
	"hash/fnv"
	"sync"

	"github.com/decred/slog"
	"github.com/vctt94/pokerroom/pkg/poker"
)

// EventBatch is the outcome of one intent on a room: the saved table and
// the events the intent produced, in order.
type EventBatch struct {
	RoomID string
	Table  *poker.Table
	Events []poker.Event
}

// Broadcaster delivers event batches to the clients of a room.
type Broadcaster interface {
	Broadcast(batch *EventBatch)
}

// EventProcessor hands event batches to the broadcaster on a pool of
// workers. Every room is bound to one worker so the batches of a room are
// delivered in the order they were published.
type EventProcessor struct {
	log         slog.Logger
	broadcaster Broadcaster
	workers     []*eventWorker
	wg          sync.WaitGroup
	started     bool
	mu          sync.RWMutex
}

// eventWorker processes the batches of the rooms hashed to it.
type eventWorker struct {
	id        int
	queue     chan *EventBatch
	processor *EventProcessor
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(log slog.Logger, b Broadcaster, queueSize, workerCount int) *EventProcessor {
	if log == nil {
		log = slog.Disabled
	}
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ep := &EventProcessor{
		log:         log,
		broadcaster: b,
	}
	for i := 0; i < workerCount; i++ {
		ep.workers = append(ep.workers, &eventWorker{
			id:        i,
			queue:     make(chan *EventBatch, queueSize),
			processor: ep,
		})
	}
	return ep
}

// Start starts the event processor workers
func (ep *EventProcessor) Start() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.started {
		return
	}

	ep.log.Infof("Starting event processor with %d workers", len(ep.workers))
	for _, w := range ep.workers {
		ep.wg.Add(1)
		go w.run()
	}
	ep.started = true
}

// Stop stops accepting batches, waits for the queued ones to be delivered
// and stops the workers.
func (ep *EventProcessor) Stop() {
	ep.mu.Lock()
	if !ep.started {
		ep.mu.Unlock()
		return
	}
	ep.log.Infof("Stopping event processor...")
	ep.started = false
	for _, w := range ep.workers {
		close(w.queue)
	}
	ep.mu.Unlock()

	ep.wg.Wait()
	ep.log.Infof("Event processor stopped")
}

// Publish queues a batch for delivery. It never blocks: when the worker of
// the room is backed up the batch is dropped.
func (ep *EventProcessor) Publish(batch *EventBatch) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	if !ep.started {
		ep.log.Warnf("Event processor not started, dropping %d events for room %s",
			len(batch.Events), batch.RoomID)
		return
	}

	w := ep.workers[ep.shard(batch.RoomID)]
	select {
	case w.queue <- batch:
		ep.log.Tracef("Published %d events for room %s to worker %d", len(batch.Events), batch.RoomID, w.id)
	default:
		ep.log.Errorf("Event queue full, dropping %d events for room %s", len(batch.Events), batch.RoomID)
	}
}

func (ep *EventProcessor) shard(roomID string) int {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return int(h.Sum32() % uint32(len(ep.workers)))
}

// run executes the worker loop
func (w *eventWorker) run() {
	defer w.processor.wg.Done()
	w.processor.log.Debugf("Event worker %d started", w.id)

	for batch := range w.queue {
		w.process(batch)
	}
	w.processor.log.Debugf("Event worker %d stopped", w.id)
}

func (w *eventWorker) process(batch *EventBatch) {
	for _, ev := range batch.Events {
		w.processor.log.Debugf("Worker %d: %s room=%s hand=%d player=%s",
			w.id, ev.Type, batch.RoomID, ev.HandNumber, ev.PlayerID)
	}
	if w.processor.broadcaster != nil {
		w.processor.broadcaster.Broadcast(batch)
	}
}

package statemachine

import (
	"sync"
)

// StateFn represents a state function following Rob Pike's pattern
type StateFn[T any] func(*T) StateFn[T]

// StateMachine drives an entity through state functions. Each state
// function is a state and returns the next one; nil ends the run.
type StateMachine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mutex   sync.RWMutex
}

// NewStateMachine creates a new state machine for the given entity
func NewStateMachine[T any](entity *T, initialStateFn StateFn[T]) *StateMachine[T] {
	return &StateMachine[T]{
		entity:  entity,
		stateFn: initialStateFn,
	}
}

// Dispatch runs stateFn once against the entity and makes its result the
// current state. A nil stateFn leaves the machine stopped.
func (sm *StateMachine[T]) Dispatch(stateFn StateFn[T]) {
	if stateFn == nil {
		sm.mutex.Lock()
		sm.stateFn = nil
		sm.mutex.Unlock()
		return
	}

	next := stateFn(sm.entity)

	sm.mutex.Lock()
	sm.stateFn = next
	sm.mutex.Unlock()
}

// GetCurrentState returns the current state function (thread-safe)
func (sm *StateMachine[T]) GetCurrentState() StateFn[T] {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.stateFn
}

// Run dispatches from the current state until a state function returns nil.
func (sm *StateMachine[T]) Run() {
	for st := sm.GetCurrentState(); st != nil; st = sm.GetCurrentState() {
		sm.Dispatch(st)
	}
}

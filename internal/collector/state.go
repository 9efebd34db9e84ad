package collector

import (
	"fmt"
	"sync"
)

// State is a phase of a crawl run.
type State int

const (
	StateSeeding State = iota
	StateRunning
	StateCompleted
	StateExhausted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "Seeding"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateExhausted:
		return "Exhausted"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// Successful reports whether the run ended without an unrecoverable error.
// Exhausted counts: the graph simply ran out of matches.
func (s State) Successful() bool {
	return s == StateCompleted || s == StateExhausted
}

var validTransitions = map[State][]State{
	StateSeeding: {StateRunning, StateFailed, StateCancelled},
	StateRunning: {StateCompleted, StateExhausted, StateFailed, StateCancelled},
}

// StateMachine tracks the current state and rejects illegal transitions.
type StateMachine struct {
	mu        sync.RWMutex
	current   State
	listeners []func(from, to State)
}

func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateSeeding}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// OnTransition registers fn to be called after every successful transition.
func (sm *StateMachine) OnTransition(fn func(from, to State)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// TransitionTo moves to next, or returns an error if next is not reachable
// from the current state.
func (sm *StateMachine) TransitionTo(next State) error {
	sm.mu.Lock()
	from := sm.current
	allowed := false
	for _, s := range validTransitions[from] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		sm.mu.Unlock()
		return fmt.Errorf("invalid state transition %s -> %s", from, next)
	}
	sm.current = next
	listeners := append([]func(from, to State){}, sm.listeners...)
	sm.mu.Unlock()

	for _, fn := range listeners {
		fn(from, next)
	}
	return nil
}

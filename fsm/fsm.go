// Package fsm implements the hierarchical task state machine from
// spec.md §4.5: initial -> running{no_task, spraying, tending, cleaning}
// <-> fault -> terminated, driven by a priority event queue so a
// fault::trigger always pre-empts a lower-priority event already pending.
package fsm

import (
	"context"
	"sync"
)

// State enumerates every node in the hierarchical transition table.
type State int

const (
	StateInitial State = iota
	StateRunningNoTask
	StateRunningSpraying
	StateRunningTending
	StateRunningCleaning
	StateFault
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateRunningNoTask:
		return "running.no_task"
	case StateRunningSpraying:
		return "running.spraying"
	case StateRunningTending:
		return "running.tending"
	case StateRunningCleaning:
		return "running.cleaning"
	case StateFault:
		return "fault"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Transition is one candidate edge out of a state for a given event kind.
// Guard, if non-nil, must return true for the transition to be taken;
// transitions for the same (state, event) are tried in registration order
// and the first whose guard passes wins. Action, if non-nil, runs before
// the state changes.
type Transition struct {
	To     State
	Guard  func() bool
	Action func(ctx context.Context) error
}

// Machine is the hierarchical FSM: one current state, one priority event
// queue, and a transition table keyed by (state, event kind).
type Machine struct {
	mu      sync.Mutex
	current State
	table   map[State]map[EventKind][]Transition
	onEnter map[State]func(ctx context.Context) error
	queue   *EventQueue
	wake    chan struct{}
}

// New constructs a Machine starting in StateInitial with an empty
// transition table; callers populate it via On before calling Run.
func New() *Machine {
	return &Machine{
		current: StateInitial,
		table:   make(map[State]map[EventKind][]Transition),
		onEnter: make(map[State]func(ctx context.Context) error),
		queue:   NewEventQueue(16),
		wake:    make(chan struct{}, 1),
	}
}

// On registers a transition from "from" on event "kind".
func (m *Machine) On(from State, kind EventKind, t Transition) {
	byEvent, ok := m.table[from]
	if !ok {
		byEvent = make(map[EventKind][]Transition)
		m.table[from] = byEvent
	}
	byEvent[kind] = append(byEvent[kind], t)
}

// OnEnter registers a state-entry action, run every time the machine
// transitions into that state (e.g. no_task's PLC-height poll/dispatch,
// spec.md §4.5).
func (m *Machine) OnEnter(s State, action func(ctx context.Context) error) {
	m.onEnter[s] = action
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Post enqueues an event and wakes the Run loop. Safe to call from any
// goroutine, including the listeners in package listener.
func (m *Machine) Post(e Event) {
	m.mu.Lock()
	m.queue.Push(e)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// step dequeues and applies exactly one pending event, returning false if
// the queue was empty.
func (m *Machine) step(ctx context.Context) (bool, error) {
	m.mu.Lock()
	ev, ok := m.queue.Pop()
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	from := m.current
	byEvent := m.table[from]
	m.mu.Unlock()

	if byEvent == nil {
		return true, nil
	}
	candidates, ok := byEvent[ev.Kind]
	if !ok {
		return true, nil
	}

	for _, t := range candidates {
		if t.Guard != nil && !t.Guard() {
			continue
		}
		if t.Action != nil {
			if err := t.Action(ctx); err != nil {
				return true, err
			}
		}

		m.mu.Lock()
		m.current = t.To
		enter := m.onEnter[t.To]
		m.mu.Unlock()

		if enter != nil {
			if err := enter(ctx); err != nil {
				return true, err
			}
		}
		break
	}
	return true, nil
}

// Run drains the event queue until ctx is cancelled or the machine reaches
// StateTerminated, blocking between drains on either a Post wakeup or
// ctx.Done. It never busy-polls: wake is only signalled by Post.
func (m *Machine) Run(ctx context.Context) error {
	for {
		for {
			progressed, err := m.step(ctx)
			if err != nil {
				return err
			}
			if !progressed {
				break
			}
			if m.Current() == StateTerminated {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
		}
	}
}

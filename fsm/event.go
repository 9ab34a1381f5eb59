package fsm

// EventKind enumerates every event the FSM's transition table recognizes
// (spec.md §4.5).
type EventKind int

const (
	EventStart EventKind = iota
	EventStop
	EventFaultTrigger
	EventFaultManual
	EventFaultRestart
	EventSprayingJob
	EventSprayingComplete
	EventTendingJob
	EventTendingComplete
	EventCleaningJob
	EventCleaningComplete
	EventHeightSprayingTending
	EventHeightCleaning
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventFaultTrigger:
		return "fault::trigger"
	case EventFaultManual:
		return "fault::manual"
	case EventFaultRestart:
		return "fault::restart"
	case EventSprayingJob:
		return "spraying::job"
	case EventSprayingComplete:
		return "spraying::complete"
	case EventTendingJob:
		return "tending::job"
	case EventTendingComplete:
		return "tending::complete"
	case EventCleaningJob:
		return "cleaning::job"
	case EventCleaningComplete:
		return "cleaning::complete"
	case EventHeightSprayingTending:
		return "height::spraying_tending"
	case EventHeightCleaning:
		return "height::cleaning"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// priority maps an event kind to its dispatch priority: higher values are
// serviced first. Per spec.md §4.5, fault::trigger (3) outranks
// fault::manual (2), which outranks fault::restart (1); everything else is
// priority 0.
func (k EventKind) priority() int {
	switch k {
	case EventFaultTrigger:
		return 3
	case EventFaultManual:
		return 2
	case EventFaultRestart:
		return 1
	default:
		return 0
	}
}

// Event is one posted occurrence, carrying an optional payload (e.g. a
// fault reason string).
type Event struct {
	Kind    EventKind
	Payload any
}

// queuedEvent is an Event annotated with its ring-buffer sort key.
type queuedEvent struct {
	event Event
	key   int64
}

// priorityWidth must exceed the largest sequence number the queue will
// ever hold between drains, so priority always dominates sequence in the
// packed key. 2^40 sequence numbers between drains is never approached in
// practice (the queue is drained every state-machine tick).
const priorityWidth = int64(1) << 40

func packKey(priority int, seq int64) int64 {
	// Negate priority so that higher-priority events sort to the front of
	// the ascending ring buffer (lower key = dequeued first), with FIFO
	// order preserved within a priority tier via ascending seq.
	return int64(-priority)*priorityWidth + seq
}

// EventQueue is the FSM's priority event queue: a growable set of pending
// events, always dequeued highest-priority-first and FIFO within a
// priority tier, backed by orderedRing (adapted from the teacher's
// catrate.ringBuffer).
type EventQueue struct {
	ring *orderedRing
	seq  int64
}

// NewEventQueue constructs an empty queue with the given initial capacity,
// which must be a power of two (grows automatically past that).
func NewEventQueue(initialCapacity int) *EventQueue {
	return &EventQueue{ring: newOrderedRing(initialCapacity)}
}

// Push enqueues an event at its priority-ordered position.
func (q *EventQueue) Push(e Event) {
	key := packKey(e.Kind.priority(), q.seq)
	q.seq++
	idx := q.ring.search(key)
	q.ring.Insert(idx, queuedEvent{event: e, key: key})
}

// Pop removes and returns the highest-priority pending event.
func (q *EventQueue) Pop() (Event, bool) {
	qe, ok := q.ring.PopFront()
	if !ok {
		return Event{}, false
	}
	return qe.event, true
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return q.ring.Len() }

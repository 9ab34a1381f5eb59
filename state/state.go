// Package state implements the process-wide Shared State from spec.md §4.4:
// one mutex, one condition variable, and a set of setters that enforce the
// cross-field invariants every writer must respect.
package state

import (
	"sync"
	"time"

	"github.com/agrigantry/gantry/profile"
)

// Snapshot is a value-type copy of TaskState (spec.md §3), safe to read
// without holding any lock.
type Snapshot struct {
	SprayingReady, SprayingRunning, SprayingComplete bool
	TendingReady, TendingRunning, TendingComplete    bool
	CleaningReady, CleaningRunning, CleaningComplete bool

	ManualMode bool
	Fault      bool
	Homing     bool
	Running    bool // process-alive

	WaterRefillingRunning      bool
	WaterRefillingRequested    bool
	DisinfectantRefillRunning  bool
	DisinfectantRefillingReq   bool
	WaterRefillLastExecuted    time.Time
	WaterRefillNextExecuted    time.Time
	DisinfectantLastExecuted   time.Time
	DisinfectantNextExecuted   time.Time

	Position profile.Coordinate
}

// AnyTaskRunning reports whether at least one of the three task-running
// flags is true; guards use this to enforce the "at most one task running"
// invariant from spec.md §3.
func (s Snapshot) AnyTaskRunning() bool {
	return s.SprayingRunning || s.TendingRunning || s.CleaningRunning
}

// Shared is the process-wide shared state object: one mutex + condition
// variable, per spec.md §4.4. Every mutation goes through a setter that
// takes the lock, mutates, and broadcasts.
type Shared struct {
	mu   sync.Mutex
	cond *sync.Cond
	s    Snapshot
}

// New constructs Shared with Running=true and all ready flags false (tasks
// become ready only through SetTaskReady).
func New() *Shared {
	sh := &Shared{}
	sh.cond = sync.NewCond(&sh.mu)
	sh.s.Running = true
	return sh
}

// Snapshot returns a value copy of the current state under the lock.
func (sh *Shared) Snapshot() Snapshot {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.s
}

// Wait blocks until predicate(current snapshot) is true, re-checking on
// every broadcast. Per spec.md §5: "a writer's change is visible to all
// waiters before the next notify_all returns" — sync.Cond guarantees this:
// Broadcast is called only after the mutation, under the same lock a
// waiter re-acquires before re-testing the predicate.
func (sh *Shared) Wait(predicate func(Snapshot) bool) Snapshot {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for !predicate(sh.s) {
		sh.cond.Wait()
	}
	return sh.s
}

// mutate runs fn under the lock, then broadcasts. Every exported setter is
// built on this so the lock/mutate/broadcast shape never varies.
func (sh *Shared) mutate(fn func(*Snapshot)) {
	sh.mu.Lock()
	fn(&sh.s)
	sh.mu.Unlock()
	sh.cond.Broadcast()
}

// Nudge broadcasts without changing anything, waking every blocked Wait so
// it re-checks its predicate. Listeners use this to unblock their own Wait
// call on shutdown, when the predicate they're waiting on may never
// naturally become true again.
func (sh *Shared) Nudge() {
	sh.mutate(func(s *Snapshot) {})
}

// SetFault sets the fault flag. Per spec.md §4.4: setting fault=true also
// sets all *_running=false and clears manual_mode, unless the caller
// explicitly requests manual mode be preserved via keepManual.
func (sh *Shared) SetFault(value bool, keepManual bool) {
	sh.mutate(func(s *Snapshot) {
		s.Fault = value
		if value {
			s.SprayingRunning = false
			s.TendingRunning = false
			s.CleaningRunning = false
			if !keepManual {
				s.ManualMode = false
			}
		}
	})
}

// SetManualMode sets manual_mode directly (used when fault deliberately
// preserves it, or when manual jog is entered/exited).
func (sh *Shared) SetManualMode(value bool) {
	sh.mutate(func(s *Snapshot) { s.ManualMode = value })
}

// SetHoming sets the homing flag.
func (sh *Shared) SetHoming(value bool) {
	sh.mutate(func(s *Snapshot) { s.Homing = value })
}

// SetRunning sets the process-alive flag.
func (sh *Shared) SetRunning(value bool) {
	sh.mutate(func(s *Snapshot) { s.Running = value })
}

// TaskKind identifies one of the three task types for the running/ready/
// complete trio setters.
type TaskKind int

const (
	Spraying TaskKind = iota
	Tending
	Cleaning
)

// SetTaskRunning sets task kind's running flag. Per spec.md §4.4:
// *_running=true requires fault=false; the call is a silent no-op (returns
// false) if fault is currently set, rather than violating the invariant.
func (sh *Shared) SetTaskRunning(kind TaskKind, value bool) (applied bool) {
	sh.mutate(func(s *Snapshot) {
		if value && s.Fault {
			return
		}
		switch kind {
		case Spraying:
			s.SprayingRunning = value
		case Tending:
			s.TendingRunning = value
		case Cleaning:
			s.CleaningRunning = value
		}
		applied = true
	})
	return applied
}

// SetTaskReady sets task kind's ready flag.
func (sh *Shared) SetTaskReady(kind TaskKind, value bool) {
	sh.mutate(func(s *Snapshot) {
		switch kind {
		case Spraying:
			s.SprayingReady = value
		case Tending:
			s.TendingReady = value
		case Cleaning:
			s.CleaningReady = value
		}
	})
}

// SetTaskComplete sets task kind's complete flag.
func (sh *Shared) SetTaskComplete(kind TaskKind, value bool) {
	sh.mutate(func(s *Snapshot) {
		switch kind {
		case Spraying:
			s.SprayingComplete = value
		case Tending:
			s.TendingComplete = value
		case Cleaning:
			s.CleaningComplete = value
		}
	})
}

// SetPosition records the coordinate after a commanded move completes.
func (sh *Shared) SetPosition(c profile.Coordinate) {
	sh.mutate(func(s *Snapshot) { s.Position = c })
}

// Liquid identifies which refilling subsystem a setter targets.
type Liquid int

const (
	Water Liquid = iota
	Disinfectant
)

// SetRefillRequested flags that a refill should run next time no_task is
// reachable (spec.md §4.6 refill schedule check).
func (sh *Shared) SetRefillRequested(liquid Liquid, value bool) {
	sh.mutate(func(s *Snapshot) {
		if liquid == Water {
			s.WaterRefillingRequested = value
		} else {
			s.DisinfectantRefillingReq = value
		}
	})
}

// SetRefillRunning flags that a refill exchange is in progress, and records
// last/next-executed timestamps when it finishes (next = now + period).
func (sh *Shared) SetRefillRunning(liquid Liquid, running bool, now time.Time, period time.Duration) {
	sh.mutate(func(s *Snapshot) {
		switch liquid {
		case Water:
			s.WaterRefillingRunning = running
			if !running {
				s.WaterRefillingRequested = false
				s.WaterRefillLastExecuted = now
				s.WaterRefillNextExecuted = now.Add(period)
			}
		case Disinfectant:
			s.DisinfectantRefillRunning = running
			if !running {
				s.DisinfectantRefillingReq = false
				s.DisinfectantLastExecuted = now
				s.DisinfectantNextExecuted = now.Add(period)
			}
		}
	})
}

// ResetUI zeroes every boolean except Running (process-alive) and the
// refill timestamps, per spec.md §4.4 reset_ui().
func (sh *Shared) ResetUI() {
	sh.mutate(func(s *Snapshot) {
		running := s.Running
		waterLast, waterNext := s.WaterRefillLastExecuted, s.WaterRefillNextExecuted
		disLast, disNext := s.DisinfectantLastExecuted, s.DisinfectantNextExecuted
		*s = Snapshot{}
		s.Running = running
		s.WaterRefillLastExecuted, s.WaterRefillNextExecuted = waterLast, waterNext
		s.DisinfectantLastExecuted, s.DisinfectantNextExecuted = disLast, disNext
	})
}

// NoTaskEntry applies the no_task state-entry reset from spec.md §4.5:
// clear running/complete/fault/manual and leave the ready flags unchanged.
// Nothing in the FSM wiring sets the ready flags; only SetTaskReady does.
func (sh *Shared) NoTaskEntry() {
	sh.mutate(func(s *Snapshot) {
		s.SprayingRunning, s.TendingRunning, s.CleaningRunning = false, false, false
		s.SprayingComplete, s.TendingComplete, s.CleaningComplete = false, false, false
		s.Fault = false
		s.ManualMode = false
	})
}

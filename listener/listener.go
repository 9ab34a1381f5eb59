// Package listener implements the long-lived supervisor goroutines from
// spec.md §4.6: each blocks on the shared condition variable for a
// specific predicate and posts an FSM event when it becomes true, rather
// than polling on a ticker (the refill scheduler is the one exception,
// since it genuinely needs wall-clock scheduling).
package listener

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agrigantry/gantry/fsm"
	"github.com/agrigantry/gantry/state"
)

// condWaiter is satisfied by *state.Shared; declared as an interface so
// tests can substitute a narrower fake. Nudge lets Stop unblock a Wait
// whose predicate may never naturally become true again.
type condWaiter interface {
	Wait(predicate func(state.Snapshot) bool) state.Snapshot
	Nudge()
}

// base runs a predicate/post loop until stopped: Wait blocks until
// predicate holds, post fires the resulting event, and the loop then
// waits for the next rising edge of predicate (so one posted event isn't
// immediately reposted against the same still-true state).
type base struct {
	name      string
	shared    condWaiter
	predicate func(state.Snapshot) bool
	post      func(state.Snapshot)
	stopped   atomic.Bool
	done      chan struct{}
}

func newBase(name string, shared condWaiter, predicate func(state.Snapshot) bool, post func(state.Snapshot)) *base {
	return &base{
		name:      name,
		shared:    shared,
		predicate: predicate,
		post:      post,
		done:      make(chan struct{}),
	}
}

func (b *base) run(ctx context.Context) {
	defer close(b.done)
	for {
		if b.stopped.Load() || ctx.Err() != nil {
			return
		}

		snap := b.shared.Wait(func(s state.Snapshot) bool { return b.stopped.Load() || b.predicate(s) })
		if b.stopped.Load() || ctx.Err() != nil {
			return
		}

		b.post(snap)

		// Wait for the predicate to go false again before re-arming, so a
		// single state change produces exactly one posted event.
		b.shared.Wait(func(s state.Snapshot) bool { return b.stopped.Load() || !b.predicate(s) })
	}
}

// Start launches the listener's goroutine.
func (b *base) Start(ctx context.Context) { go b.run(ctx) }

// Stop signals the listener to exit at its next wake and waits for it to
// finish. Nudge forces any in-progress Wait to re-check the now-true
// stopped flag immediately, rather than waiting for an unrelated state
// change.
func (b *base) Stop() {
	b.stopped.Store(true)
	b.shared.Nudge()
	<-b.done
}

// Fault posts fsm.EventFaultTrigger whenever Snapshot.Fault transitions to
// true out-of-band (e.g. set directly by a guard rather than through this
// listener's own trigger path) — primarily useful as the single place
// every fault source converges on for posting into the machine.
type Fault struct{ *base }

// NewFault constructs the fault listener.
func NewFault(shared condWaiter, machine *fsm.Machine) *Fault {
	return &Fault{base: newBase("fault", shared, func(s state.Snapshot) bool { return s.Fault }, func(s state.Snapshot) {
		machine.Post(fsm.Event{Kind: fsm.EventFaultTrigger})
	})}
}

// TaskTimeout posts fsm.EventFaultTrigger if a task has been running past
// its allotted deadline. Since Snapshot carries no per-task start time,
// the deadline check happens in the supplied predicate closure.
type TaskTimeout struct{ *base }

// NewTaskTimeout constructs a task-timeout listener from a caller-supplied
// "is any task overdue" predicate (the caller closes over its own
// per-task start-time bookkeeping).
func NewTaskTimeout(shared condWaiter, machine *fsm.Machine, overdue func(state.Snapshot) bool) *TaskTimeout {
	return &TaskTimeout{base: newBase("task_timeout", shared, overdue, func(s state.Snapshot) {
		machine.Post(fsm.Event{Kind: fsm.EventFaultTrigger, Payload: "task timeout"})
	})}
}

// RestartFromFault posts fsm.EventFaultRestart once the reset precondition
// holds (fault set, manual mode not engaged — see guard.Reset).
type RestartFromFault struct{ *base }

// NewRestartFromFault constructs the restart listener.
func NewRestartFromFault(shared condWaiter, machine *fsm.Machine, resetRequested func(state.Snapshot) bool) *RestartFromFault {
	return &RestartFromFault{base: newBase("restart_from_fault", shared, resetRequested, func(s state.Snapshot) {
		machine.Post(fsm.Event{Kind: fsm.EventFaultRestart})
	})}
}

// WaterRefill posts a water-exchange request once
// Snapshot.WaterRefillingRequested is set.
type WaterRefill struct{ *base }

// NewWaterRefill constructs the water-refill listener.
func NewWaterRefill(shared condWaiter, onRequested func(state.Snapshot)) *WaterRefill {
	return &WaterRefill{base: newBase("water_refill", shared, func(s state.Snapshot) bool {
		return s.WaterRefillingRequested && !s.WaterRefillingRunning
	}, onRequested)}
}

// DisinfectantRefill is the disinfectant analogue of WaterRefill.
type DisinfectantRefill struct{ *base }

// NewDisinfectantRefill constructs the disinfectant-refill listener.
func NewDisinfectantRefill(shared condWaiter, onRequested func(state.Snapshot)) *DisinfectantRefill {
	return &DisinfectantRefill{base: newBase("disinfectant_refill", shared, func(s state.Snapshot) bool {
		return s.DisinfectantRefillingReq && !s.DisinfectantRefillRunning
	}, onRequested)}
}

// RefillScheduler is the one listener that is a genuine ticker rather
// than a condition-variable waiter: it periodically checks wall-clock
// next-executed deadlines and flags a refill as requested, per spec.md
// §4.6.
type RefillScheduler struct {
	shared *state.Shared
	period time.Duration
	stop   chan struct{}
	done   chan struct{}
}

// NewRefillScheduler constructs a scheduler that polls every period.
func NewRefillScheduler(shared *state.Shared, period time.Duration) *RefillScheduler {
	return &RefillScheduler{shared: shared, period: period, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the scheduler's ticker goroutine.
func (r *RefillScheduler) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		t := time.NewTicker(r.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-t.C:
				r.tick()
			}
		}
	}()
}

func (r *RefillScheduler) tick() {
	now := time.Now()
	snap := r.shared.Snapshot()
	if !snap.WaterRefillingRunning && !now.Before(snap.WaterRefillNextExecuted) {
		r.shared.SetRefillRequested(state.Water, true)
	}
	if !snap.DisinfectantRefillRunning && !now.Before(snap.DisinfectantNextExecuted) {
		r.shared.SetRefillRequested(state.Disinfectant, true)
	}
}

// Stop halts the ticker and waits for the goroutine to exit.
func (r *RefillScheduler) Stop() {
	close(r.stop)
	<-r.done
}

// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package corestate owns, for one hardware core, its ready queues, its
// waiting queues, its current process, its reduction budget, its
// work-stealing deque, and its counters — exactly one instance per core,
// pre-allocated together as a vector indexed by core id.
package corestate

import (
	"sync/atomic"

	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/steal"
	"github.com/hayabusa-cloud/lfq"
)

// WakeSignal is what one core posts to another's wake queue to ask it to
// move a Waiting PCB back to Ready. No core ever writes another core's
// queues directly; a wake crossing cores is always delivered through
// this MPSC channel and drained at the top of schedule().
type WakeSignal struct {
	Target *pcb.PCB
}

// StealOutSignal is what a thief posts to a victim's steal-out queue
// after popping p from the victim's deque. The PCB is already
// cross-core-safe to hand to the thief (Deque.PopTop's CAS protocol
// settles that), but it is still linked into the victim's own
// (non-atomic) ready queue; only the victim's own goroutine may unlink
// it from there, which it does by draining this queue at the top of its
// own schedule(), the same way cross-core wakes are drained.
type StealOutSignal struct {
	Target *pcb.PCB
}

// Counters are the per-core statistics tracked alongside scheduling:
// scheduled, yields, migrations, steals.
type Counters struct {
	Scheduled  atomic.Uint64
	Yields     atomic.Uint64
	Migrations atomic.Uint64
	Steals     atomic.Uint64
	Preempts   atomic.Uint64
}

// State is one core's scheduler state. Every field except the
// cross-core wake queue, the steal-out queue, and the thief-end of
// Deque is owned exclusively by this core's goroutine.
type State struct {
	id int

	ready   [pcb.NumPriorities]pcb.Queue
	waiting [pcb.NumReasons]pcb.Queue

	current    *pcb.PCB
	reductions uint64

	deque    *steal.Deque
	wake     lfq.Queue[WakeSignal]
	stealOut lfq.Queue[StealOutSignal]

	now uint64 // last tick value observed by this core

	Counters Counters
}

// New creates scheduler state for core id, with a work-stealing deque of
// the given capacity and cross-core wake/steal-out queues of the given
// capacity.
func New(id int, dequeCapacity, wakeQueueCapacity int) *State {
	return &State{
		id:       id,
		deque:    steal.NewDeque(dequeCapacity),
		wake:     lfq.NewMPSC[WakeSignal](wakeQueueCapacity),
		stealOut: lfq.NewMPSC[StealOutSignal](wakeQueueCapacity),
	}
}

// ID is this core's id. Implements steal.CoreView.
func (s *State) ID() int { return s.id }

// Deque returns this core's work-stealing deque. Implements steal.CoreView.
func (s *State) Deque() *steal.Deque { return s.deque }

// ReadyQueue returns the ready queue for priority pri.
func (s *State) ReadyQueue(pri pcb.Priority) *pcb.Queue {
	if !pri.Valid() {
		return nil
	}
	return &s.ready[pri]
}

// WaitingQueue returns the waiting queue for blocking reason r.
func (s *State) WaitingQueue(r pcb.BlockingReason) *pcb.Queue {
	if int(r) >= pcb.NumReasons {
		return nil
	}
	return &s.waiting[r]
}

// QueueLen reports the ready queue length at priority pri. Implements
// steal.CoreView.
func (s *State) QueueLen(pri pcb.Priority) int {
	q := s.ReadyQueue(pri)
	if q == nil {
		return 0
	}
	return q.Len()
}

// EnqueueReady links p into this core's ready queue at p.Priority's tail,
// sets p.State = Ready and p.OwningCore, and mirrors p into the
// work-stealing deque so thieves can see it. Implements steal.CoreView.
func (s *State) EnqueueReady(p *pcb.PCB) {
	p.OwningCore = s.id
	p.State = pcb.Ready
	s.ready[p.Priority].Enqueue(p)
	s.deque.PushBottom(p)
}

// RemoveReady unlinks p from whichever ready queue currently holds it; a
// no-op if p isn't linked into one of this core's ready queues. Only
// this core's own goroutine may call it directly (e.g. Block removing
// its own current process); a different core wanting p removed must go
// through PostStealOut instead. Does not touch the deque: a concurrent
// thief may already have popped p from there, and Deque.PopTop's CAS
// protocol guarantees at most one caller ever receives it either way.
func (s *State) RemoveReady(p *pcb.PCB) {
	for pri := pcb.Max; pri < pcb.NumPriorities; pri++ {
		s.ready[pri].Remove(p)
	}
}

// Current returns the PCB currently Running on this core, or nil.
func (s *State) Current() *pcb.PCB { return s.current }

// SetCurrent sets the PCB currently Running on this core.
func (s *State) SetCurrent(p *pcb.PCB) { s.current = p }

// Reductions returns the remaining reduction budget.
func (s *State) Reductions() uint64 { return s.reductions }

// SetReductions sets the remaining reduction budget.
func (s *State) SetReductions(n uint64) { s.reductions = n }

// Now returns the last tick value Tick observed.
func (s *State) Now() uint64 { return s.now }

// Tick advances this core's view of monotonic time.
func (s *State) Tick(now uint64) { s.now = now }

// PostWake enqueues a wake intent for p onto this core's cross-core wake
// queue. Called by a *different* core than s's owner; drained by the
// owner at the top of schedule(). Returns false if the queue is full
// (the caller retries on the next tick — wakes are not lost, merely
// delayed, since the woken PCB stays Waiting until actually woken).
func (s *State) PostWake(p *pcb.PCB) bool {
	sig := WakeSignal{Target: p}
	return s.wake.Enqueue(&sig) == nil
}

// DrainWakes pops every pending cross-core wake intent, calling fn for
// each target PCB, in FIFO order.
func (s *State) DrainWakes(fn func(*pcb.PCB)) {
	for {
		sig, err := s.wake.Dequeue()
		if err != nil {
			return
		}
		fn(sig.Target)
	}
}

// PostStealOut enqueues a steal-out intent for p onto this core's
// cross-core steal-out queue. Called by the thief that just popped p
// from this core's deque; drained by this core's own goroutine at the
// top of schedule(), which is the only goroutine allowed to unlink p
// from s.ready. Returns false if the queue is full, in which case the
// caller must retry until it succeeds rather than let p stay linked
// into this core's ready queue after it has already been handed to a
// thief.
func (s *State) PostStealOut(p *pcb.PCB) bool {
	sig := StealOutSignal{Target: p}
	return s.stealOut.Enqueue(&sig) == nil
}

// DrainStealOuts pops every pending steal-out intent, calling fn for
// each target PCB, in FIFO order. Must only be called by this core's
// own goroutine, at the top of schedule(), before the priority scan.
func (s *State) DrainStealOuts(fn func(*pcb.PCB)) {
	for {
		sig, err := s.stealOut.Dequeue()
		if err != nil {
			return
		}
		fn(sig.Target)
	}
}

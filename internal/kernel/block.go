// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/aclements/actlysched/internal/corestate"
	"github.com/aclements/actlysched/internal/pcb"
)

// Block moves p to the waiting queue for reason, clears it from
// current/ready, and dispatches a replacement on core, returning it (or
// nil if core has nothing else ready).
func (k *Kernel) Block(core int, p *pcb.PCB, reason pcb.BlockingReason) *pcb.PCB {
	st, err := k.core(core)
	if err != nil || p == nil {
		return nil
	}
	if st.Current() == p {
		st.SetCurrent(nil)
	} else {
		st.RemoveReady(p)
	}
	p.State = pcb.Waiting
	p.BlockingReason = reason
	st.WaitingQueue(reason).Enqueue(p)
	return k.Schedule(core)
}

// wakeLocal moves p from its waiting queue to the ready queue of its
// priority on st's core. Only valid to call from st's own goroutine
// (the owning core); cross-core callers must go through Wake, which
// routes to corestate.State.PostWake instead.
func (k *Kernel) wakeLocal(st *corestate.State, p *pcb.PCB) bool {
	if p == nil || p.State != pcb.Waiting {
		return false
	}
	st.WaitingQueue(p.BlockingReason).Remove(p)
	p.BlockingReason = pcb.ReasonNone
	st.EnqueueReady(p)
	return true
}

// Wake moves p from Waiting to Ready. core is the id of the core
// invoking Wake, not necessarily p's owning core: if p.OwningCore
// differs from core, the wake is delivered cross-core via the owning
// core's wake queue and applied lazily at that core's next Schedule;
// same-core wakes apply immediately. No-op, returning false, if p is
// not currently Waiting.
func (k *Kernel) Wake(core int, p *pcb.PCB) bool {
	if p == nil {
		return false
	}
	if p.State != pcb.Waiting {
		return false
	}
	owner, err := k.core(p.OwningCore)
	if err != nil {
		return false
	}
	if p.OwningCore == core {
		return k.wakeLocal(owner, p)
	}
	return owner.PostWake(p)
}

// BlockOnReceive returns a mailbox message matching pattern without
// blocking if one is already queued; otherwise it blocks p on
// ReasonReceive (recording pattern in BlockingData) and returns the
// replacement Schedule dispatched, if any.
func (k *Kernel) BlockOnReceive(core int, p *pcb.PCB, pattern uint64) (msg pcb.Message, ok bool, replacement *pcb.PCB) {
	if p == nil || p.Mailbox == nil {
		return pcb.Message{}, false, nil
	}
	if m, found := p.Mailbox.Receive(pattern); found {
		return m, true, nil
	}
	p.BlockingData = pattern
	return pcb.Message{}, false, k.Block(core, p, pcb.ReasonReceive)
}

// BlockOnTimer records wake_time = now + timeoutTicks and blocks p on
// ReasonTimer, returning p's timer id for later CancelTimer calls. Fails
// with ErrTimeout if timeoutTicks exceeds the configured MaxBlockingTime,
// leaving p untouched.
func (k *Kernel) BlockOnTimer(core int, p *pcb.PCB, timeoutTicks uint64) (timerID uint64, replacement *pcb.PCB, err error) {
	st, err := k.core(core)
	if err != nil || p == nil {
		return 0, nil, ErrInvalidPCB
	}
	if timeoutTicks > k.cfg.MaxBlockingTime {
		return 0, nil, ErrTimeout
	}
	k.nextTimerID++
	p.TimerID = k.nextTimerID
	p.WakeTime = st.Now() + timeoutTicks
	return p.TimerID, k.Block(core, p, pcb.ReasonTimer), nil
}

// BlockOnIO records descriptor in BlockingData and blocks p on ReasonIO.
func (k *Kernel) BlockOnIO(core int, p *pcb.PCB, descriptor uint64) *pcb.PCB {
	if p == nil {
		return nil
	}
	p.BlockingData = descriptor
	return k.Block(core, p, pcb.ReasonIO)
}

// CheckTimerWakeups wakes every Timer-waiting PCB on core whose
// wake_time has arrived, preserving their relative queue order, and
// returns how many were woken. Intended to run once per tick per core.
func (k *Kernel) CheckTimerWakeups(core int) int {
	st, err := k.core(core)
	if err != nil {
		return 0
	}
	now := st.Now()
	timerQ := st.WaitingQueue(pcb.ReasonTimer)

	var due []*pcb.PCB
	timerQ.Each(func(p *pcb.PCB) {
		if p.WakeTime <= now {
			due = append(due, p)
		}
	})
	for _, p := range due {
		timerQ.Remove(p)
		p.BlockingReason = pcb.ReasonNone
		st.EnqueueReady(p)
	}
	return len(due)
}

// CancelTimer removes p's pending timer wake if id matches and p is
// still Timer-waiting, returning it to Ready without going through the
// normal timer-expiry path. Safe to call after the timer already fired
// or with a stale id: both are no-ops returning false.
func (k *Kernel) CancelTimer(core int, p *pcb.PCB, id uint64) bool {
	st, err := k.core(core)
	if err != nil || p == nil {
		return false
	}
	if p.State != pcb.Waiting || p.BlockingReason != pcb.ReasonTimer || p.TimerID != id {
		return false
	}
	st.WaitingQueue(pcb.ReasonTimer).Remove(p)
	p.BlockingReason = pcb.ReasonNone
	st.EnqueueReady(p)
	return true
}

// Send delivers msg to to's mailbox and, if to was blocked on a
// receive pattern matching msg.Pattern, wakes it. Supplemented from the
// original test suite's message-passing coverage (test_integration
// yielding), not named in the distilled operation table.
func (k *Kernel) Send(core int, to *pcb.PCB, msg pcb.Message) bool {
	if to == nil || to.Mailbox == nil {
		return false
	}
	if !to.Mailbox.Send(msg) {
		return false
	}
	if to.State == pcb.Waiting && to.BlockingReason == pcb.ReasonReceive {
		if to.BlockingData == pcb.MatchAny || to.BlockingData == msg.Pattern {
			k.Wake(core, to)
		}
	}
	return true
}

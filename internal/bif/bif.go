// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bif implements the built-in operations ("BIFs") a running
// process invokes: actly_yield, actly_spawn, actly_exit, actly_send, and
// the shared bif_trap_check reduction-cost gate every one of them goes
// through first.
package bif

import (
	"github.com/aclements/actlysched/internal/kernel"
	"github.com/aclements/actlysched/internal/pcb"
)

// Costs, in reductions, of each BIF.
const (
	CostYield = 1
	CostSpawn = 10
	CostExit  = 1
	CostSend  = 5
)

// TrapCheck reports whether core's current reduction budget covers
// cost. It only answers the question; it never preempts by itself. Each
// BIF below calls it first and, on failure, preempts the running
// process itself so the caller's retry after rescheduling just re-enters
// the same BIF rather than having to drive the preempt by hand.
func TrapCheck(k *kernel.Kernel, core int, cost uint64) bool {
	return k.GetReductions(core) >= cost
}

// trapPreempt preempts core's running process after a failed TrapCheck,
// so it retries the BIF once rescheduled with a fresh budget.
func trapPreempt(k *kernel.Kernel, core int) {
	if p := k.GetCurrent(core); p != nil {
		k.Preempt(core, p)
	}
}

// Yield implements actly_yield: bif_trap_check(CostYield), then an
// unconditional voluntary yield of the running process. Returns false
// without yielding if the budget doesn't cover the cost, having already
// preempted the caller so it retries after rescheduling.
func Yield(k *kernel.Kernel, core int) bool {
	if !TrapCheck(k, core, CostYield) {
		trapPreempt(k, core)
		return false
	}
	p := k.GetCurrent(core)
	if p == nil {
		return false
	}
	k.SetReductions(core, k.GetReductions(core)-CostYield)
	k.Yield(core, p)
	return true
}

// Spawn implements actly_spawn: allocate a PCB, enqueue it at pri on
// core, and return its pid. ok is false if the reduction budget doesn't
// cover CostSpawn (having already preempted the caller to retry after
// rescheduling) or allocation failed (pool exhausted).
func Spawn(k *kernel.Kernel, core int, entry uint64, pri pcb.Priority, kind pcb.Kind, stackSize, heapSize uint64) (pid uint64, ok bool) {
	if !TrapCheck(k, core, CostSpawn) {
		trapPreempt(k, core)
		return 0, false
	}
	p, err := k.Spawn(core, entry, pri, kind, stackSize, heapSize)
	if err != nil {
		return 0, false
	}
	k.SetReductions(core, k.GetReductions(core)-CostSpawn)
	return p.PID, true
}

// Exit implements actly_exit: bif_trap_check(CostExit), then remove the
// running process from core and return it to the pool. Succeeds whenever
// there is a current process and the budget covers CostExit; if the
// budget doesn't, the caller is preempted so it retries after
// rescheduling. Cancellation of any in-flight timer or mailbox wait is
// implicit since the PCB is no longer reachable from any queue once freed.
func Exit(k *kernel.Kernel, core int) bool {
	if !TrapCheck(k, core, CostExit) {
		trapPreempt(k, core)
		return false
	}
	p := k.GetCurrent(core)
	if p == nil {
		return false
	}
	k.SetReductions(core, k.GetReductions(core)-CostExit)
	k.SetCurrent(core, nil)
	k.DestroyProcess(p)
	k.Schedule(core)
	return true
}

// Send implements actly_send: deliver msg to to's mailbox, waking it if
// it was blocked on a matching receive pattern. Supplemented from the
// original's message-passing tests; not present in the distilled BIF
// table.
func Send(k *kernel.Kernel, core int, to *pcb.PCB, msg pcb.Message) bool {
	if !TrapCheck(k, core, CostSend) {
		trapPreempt(k, core)
		return false
	}
	if !k.Send(core, to, msg) {
		return false
	}
	k.SetReductions(core, k.GetReductions(core)-CostSend)
	return true
}

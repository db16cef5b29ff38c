// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/aclements/actlysched/internal/corestate"
	"github.com/aclements/actlysched/internal/pcb"
)

// DecrementReductions consumes one reduction from core's budget and
// reports whether it just reached zero. Once the budget is at zero,
// further calls keep returning true without underflowing — the caller
// is expected to preempt on the first true and not call again until the
// next dispatch resets the budget.
func (k *Kernel) DecrementReductions(core int) bool {
	st, err := k.core(core)
	if err != nil {
		return false
	}
	n := st.Reductions()
	if n == 0 {
		return true
	}
	n--
	st.SetReductions(n)
	if cur := st.Current(); cur != nil {
		cur.ReductionCount = n
	}
	return n == 0
}

// YieldCheck reports whether core's reduction budget is exhausted. p is
// validated but not otherwise consulted: the budget lives on the core,
// not the PCB, since only one process runs per core at a time.
func (k *Kernel) YieldCheck(core int, p *pcb.PCB) bool {
	st, err := k.core(core)
	if err != nil || p == nil {
		return false
	}
	return st.Reductions() == 0
}

// transferOut moves p from Running to the tail of its own priority
// queue, clears current, and dispatches a replacement via Schedule.
// Preempt and Yield are mechanically identical, differing only in who
// calls them, why, and which counter they bump.
func (k *Kernel) transferOut(st *corestate.State, core int, p *pcb.PCB) *pcb.PCB {
	p.State = pcb.Ready
	st.SetCurrent(nil)
	k.Enqueue(core, p, p.Priority)
	return k.Schedule(core)
}

// Preempt saves p's place in line (re-enqueueing at its priority's
// tail), and dispatches a replacement. Called when DecrementReductions
// reports the budget exhausted.
func (k *Kernel) Preempt(core int, p *pcb.PCB) *pcb.PCB {
	st, err := k.core(core)
	if err != nil || p == nil {
		return nil
	}
	next := k.transferOut(st, core, p)
	st.Counters.Preempts.Add(1)
	return next
}

// Yield is Preempt's voluntary counterpart: unconditional, and always
// resets the budget via the Schedule call it ends with.
func (k *Kernel) Yield(core int, p *pcb.PCB) *pcb.PCB {
	st, err := k.core(core)
	if err != nil || p == nil {
		return nil
	}
	next := k.transferOut(st, core, p)
	st.Counters.Yields.Add(1)
	return next
}

// YieldConditional yields only if some other ready process exists on
// core; otherwise p keeps running untouched and false is returned.
func (k *Kernel) YieldConditional(core int, p *pcb.PCB) bool {
	st, err := k.core(core)
	if err != nil || p == nil {
		return false
	}
	any := false
	for pri := pcb.Max; pri < pcb.NumPriorities; pri++ {
		if st.QueueLen(pri) > 0 {
			any = true
			break
		}
	}
	if !any {
		return false
	}
	k.Yield(core, p)
	return true
}

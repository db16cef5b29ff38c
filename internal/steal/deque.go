// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package steal implements the work-stealing engine: a Chase-Lev deque
// per core, load-aware/locality-aware/random victim selection, and
// migration bookkeeping.
package steal

import (
	"sync/atomic"

	"github.com/aclements/actlysched/internal/pcb"
)

// Deque is a Chase-Lev circular work-stealing deque of *pcb.PCB
// references (the deque holds references, never owns the PCBs — the
// ready queue or the pool does). The owner end (bottom) is LIFO and
// touched only by the owning core; the thief end (top) is FIFO and may
// be hit concurrently by any number of other cores.
//
// Grounded in the Chase-Lev algorithm, generalized from generic jobs to
// PCB references. The buffer starts at a power-of-two capacity and
// PushBottom doubles it whenever it is full, so the deque is never full.
type Deque struct {
	top    atomic.Int64
	bottom atomic.Int64
	buf    atomic.Pointer[buffer]
}

type buffer struct {
	mask  int64
	slots []atomic.Pointer[pcb.PCB]
}

func newBuffer(size int64) *buffer {
	return &buffer{mask: size - 1, slots: make([]atomic.Pointer[pcb.PCB], size)}
}

func (b *buffer) get(i int64) *pcb.PCB {
	return b.slots[i&b.mask].Load()
}

func (b *buffer) put(i int64, p *pcb.PCB) {
	b.slots[i&b.mask].Store(p)
}

// NewDeque creates a deque with the given power-of-two capacity (rounded
// up if not already one).
func NewDeque(capacity int) *Deque {
	size := int64(1)
	for size < int64(capacity) {
		size <<= 1
	}
	if size < 2 {
		size = 2
	}
	d := &Deque{}
	d.buf.Store(newBuffer(size))
	return d
}

// PushBottom pushes p onto the owner end. Only the owning core may call
// this. It always returns true: a full buffer is doubled first.
func (d *Deque) PushBottom(p *pcb.PCB) bool {
	b := d.bottom.Load()
	t := d.top.Load()
	buf := d.buf.Load()
	if size := b - t; size >= int64(len(buf.slots)) {
		buf = d.grow(buf, b, t)
	}
	buf.put(b, p)
	d.bottom.Store(b + 1)
	return true
}

func (d *Deque) grow(old *buffer, b, t int64) *buffer {
	bigger := newBuffer(int64(len(old.slots)) * 2)
	for i := t; i < b; i++ {
		bigger.put(i, old.get(i))
	}
	d.buf.Store(bigger)
	return bigger
}

// PopBottom pops from the owner end (LIFO). Only the owning core may call
// this; it may race against concurrent PopTop callers and resolves that
// race with the standard Chase-Lev CAS on top.
func (d *Deque) PopBottom() *pcb.PCB {
	b := d.bottom.Load() - 1
	buf := d.buf.Load()
	d.bottom.Store(b)
	t := d.top.Load()

	size := b - t
	if size < 0 {
		// Deque was empty; restore bottom.
		d.bottom.Store(t)
		return nil
	}
	p := buf.get(b)
	if size > 0 {
		return p
	}
	// Last element: race the thieves for it via CAS on top.
	if !d.top.CompareAndSwap(t, t+1) {
		p = nil
	}
	d.bottom.Store(t + 1)
	return p
}

// PopTop pops from the thief end (FIFO). Safe to call concurrently from
// any number of other cores, and concurrently with the owner's
// PushBottom/PopBottom.
func (d *Deque) PopTop() *pcb.PCB {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return nil
	}
	buf := d.buf.Load()
	p := buf.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		// Lost the race, to either the owner or another thief.
		return nil
	}
	return p
}

// Len returns a snapshot of the deque's size. Racy by construction (the
// spec explicitly does not require an accurate concurrent length), useful
// only for load estimation and diagnostics.
func (d *Deque) Len() int {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return int(b - t)
}

// IsEmpty reports whether the deque looked empty at the time of the call.
func (d *Deque) IsEmpty() bool { return d.Len() <= 0 }

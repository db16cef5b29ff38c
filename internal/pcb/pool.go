// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcb

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrExhausted is returned by Pool.Allocate when no slot is free.
var ErrExhausted = errors.New("pcb: pool exhausted")

// slot is one pool entry: a PCB plus its free flag, with no padding. The
// source lays these out at 512 bytes each (config.PCBSize); we don't hit
// that byte count in Go (no raw pointer arithmetic here), but we keep the
// slab shape — pre-allocated arrays indexed by slot, not one pointer per
// PCB scattered across the Go heap.
type slot struct {
	pcb  PCB
	free bool
}

// Pool is a slab allocator for PCBs. Slots live in fixed-size chunks: a
// chunk's backing array, once allocated, is never reallocated or moved,
// so a *PCB handed out by Allocate stays valid — and every intrusive
// next/prev link pointing at it stays valid — for the PCB's entire
// lifetime, including across any number of Expand calls. Growing the
// pool appends a new chunk; it never touches an existing one.
type Pool struct {
	mu        sync.Mutex
	chunks    [][]slot
	chunkBase []int // chunkBase[i] is the global slot index of chunks[i][0]
	total     int   // sum of all chunk lengths
	freeList  []int // global slot indices, LIFO
	nextPID   uint64
}

// NewPool allocates a pool of size slots, all initially free.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{nextPID: 1}
	p.addChunk(size)
	return p
}

// addChunk appends a new chunk of n slots, assigning it the next block of
// global indices. Must be called with p.mu held.
func (p *Pool) addChunk(n int) {
	base := p.total
	chunk := make([]slot, n)
	for i := range chunk {
		chunk[i].free = true
	}
	p.chunks = append(p.chunks, chunk)
	p.chunkBase = append(p.chunkBase, base)
	p.total += n
	for i := n - 1; i >= 0; i-- {
		p.freeList = append(p.freeList, base+i) // reverse so the lowest index pops first
	}
}

// slotAt returns the slot at global index idx, or nil if idx is out of
// range. Must be called with p.mu held.
func (p *Pool) slotAt(idx int) *slot {
	if idx < 0 || idx >= p.total {
		return nil
	}
	for i := len(p.chunks) - 1; i >= 0; i-- {
		if idx >= p.chunkBase[i] {
			return &p.chunks[i][idx-p.chunkBase[i]]
		}
	}
	return nil
}

// Allocate returns a fresh PCB initialized with the given entry point,
// priority, and stack/heap sizes, or ErrExhausted if no slot is free.
func (p *Pool) Allocate(entry uint64, priority Priority, stackSize, heapSize uint64) (*PCB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.freeList) == 0 {
		return nil, ErrExhausted
	}
	idx := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]

	s := p.slotAt(idx)
	s.free = false
	s.pcb = PCB{
		PID:        p.nextPID,
		State:      Created,
		Priority:   priority,
		EntryPoint: entry,
		StackBase:  0,
		StackSize:  stackSize,
		StackPtr:   0,
		StackLimit: stackSize,
		HeapBase:   0,
		HeapSize:   heapSize,
		HeapPtr:    0,
		HeapLimit:  heapSize,
		Mailbox:    NewMailbox(64),
		poolIndex:  idx,
	}
	var full unix.CPUSet
	for i := 0; i < unix.CPU_SETSIZE; i++ {
		full.Set(i)
	}
	s.pcb.AffinityMask = full
	p.nextPID++
	return &s.pcb, nil
}

// Free zeros the slot and returns it to the free list. It is the caller's
// responsibility to have first removed the PCB from any queue it might
// still be linked into.
func (p *Pool) Free(victim *PCB) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.slotAt(victim.poolIndex)
	if s == nil || &s.pcb != victim || s.free {
		return // not a live PCB from this pool; benign no-op
	}
	*s = slot{free: true}
	p.freeList = append(p.freeList, victim.poolIndex)
}

// Len reports the number of slots currently allocated (not free).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - len(p.freeList)
}

// Cap reports the pool's total slot count across all chunks.
func (p *Pool) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Expand grows the pool by n slots, as if the pool were followed by
// contiguous free address space: it appends a new chunk rather than
// reallocating, so every previously-allocated PCB's address and
// intrusive queue links remain valid. Matches expand_pool's contract:
// this is not required to succeed; allowed lets a caller that has
// decided never to grow this pool again always get false back.
func (p *Pool) Expand(n int, allowed bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !allowed || n <= 0 {
		return false
	}
	p.addChunk(n)
	return true
}

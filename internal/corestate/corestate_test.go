// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corestate

import (
	"testing"

	"github.com/aclements/actlysched/internal/pcb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueReadySetsOwnerAndState(t *testing.T) {
	s := New(3, 8, 8)
	p := &pcb.PCB{PID: 1, Priority: pcb.High}
	s.EnqueueReady(p)

	assert.Equal(t, 3, p.OwningCore)
	assert.Equal(t, pcb.Ready, p.State)
	assert.Equal(t, 1, s.QueueLen(pcb.High))
	assert.Same(t, p, s.ReadyQueue(pcb.High).Peek())
}

func TestRemoveReadyIsNoopWhenNotQueued(t *testing.T) {
	s := New(0, 8, 8)
	p := &pcb.PCB{PID: 1, Priority: pcb.Normal}
	assert.NotPanics(t, func() { s.RemoveReady(p) })
	assert.Equal(t, 0, s.QueueLen(pcb.Normal))
}

func TestRemoveReadyUnlinksFromItsPriority(t *testing.T) {
	s := New(0, 8, 8)
	a := &pcb.PCB{PID: 1, Priority: pcb.Low}
	b := &pcb.PCB{PID: 2, Priority: pcb.Low}
	s.EnqueueReady(a)
	s.EnqueueReady(b)
	require.Equal(t, 2, s.QueueLen(pcb.Low))

	s.RemoveReady(a)
	assert.Equal(t, 1, s.QueueLen(pcb.Low))
	assert.Same(t, b, s.ReadyQueue(pcb.Low).Peek())
}

func TestCurrentAndReductions(t *testing.T) {
	s := New(0, 8, 8)
	assert.Nil(t, s.Current())

	p := &pcb.PCB{PID: 1}
	s.SetCurrent(p)
	assert.Same(t, p, s.Current())

	s.SetReductions(2000)
	assert.Equal(t, uint64(2000), s.Reductions())
}

func TestWaitingQueueIndexedByReason(t *testing.T) {
	s := New(0, 8, 8)
	p := &pcb.PCB{PID: 1}
	s.WaitingQueue(pcb.ReasonTimer).Enqueue(p)
	assert.Equal(t, 1, s.WaitingQueue(pcb.ReasonTimer).Len())
	assert.Equal(t, 0, s.WaitingQueue(pcb.ReasonIO).Len())
}

func TestTickAndNow(t *testing.T) {
	s := New(0, 8, 8)
	assert.Equal(t, uint64(0), s.Now())
	s.Tick(42)
	assert.Equal(t, uint64(42), s.Now())
}

func TestPostWakeAndDrainWakesFIFO(t *testing.T) {
	s := New(0, 8, 8)
	a := &pcb.PCB{PID: 1}
	b := &pcb.PCB{PID: 2}
	require.True(t, s.PostWake(a))
	require.True(t, s.PostWake(b))

	var drained []*pcb.PCB
	s.DrainWakes(func(p *pcb.PCB) { drained = append(drained, p) })

	require.Len(t, drained, 2)
	assert.Same(t, a, drained[0])
	assert.Same(t, b, drained[1])

	// A second drain with nothing pending must call fn zero times.
	s.DrainWakes(func(p *pcb.PCB) { t.Fatal("unexpected wake drained") })
}

func TestPostStealOutAndDrainStealOutsFIFO(t *testing.T) {
	s := New(0, 8, 8)
	a := &pcb.PCB{PID: 1, Priority: pcb.Normal}
	b := &pcb.PCB{PID: 2, Priority: pcb.Normal}
	s.EnqueueReady(a)
	s.EnqueueReady(b)
	require.Equal(t, 2, s.QueueLen(pcb.Normal))

	require.True(t, s.PostStealOut(a))
	require.True(t, s.PostStealOut(b))

	// The ready queue is untouched until the steal-outs are drained,
	// mirroring how a thief's Migrate call only posts an intent.
	assert.Equal(t, 2, s.QueueLen(pcb.Normal))

	var drained []*pcb.PCB
	s.DrainStealOuts(func(p *pcb.PCB) {
		drained = append(drained, p)
		s.RemoveReady(p)
	})

	require.Len(t, drained, 2)
	assert.Same(t, a, drained[0])
	assert.Same(t, b, drained[1])
	assert.Equal(t, 0, s.QueueLen(pcb.Normal))

	// A second drain with nothing pending must call fn zero times.
	s.DrainStealOuts(func(p *pcb.PCB) { t.Fatal("unexpected steal-out drained") })
}

func TestIDMatchesConstructionArgument(t *testing.T) {
	s := New(7, 8, 8)
	assert.Equal(t, 7, s.ID())
}

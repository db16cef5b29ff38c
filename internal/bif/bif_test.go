// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bif

import (
	"testing"

	"github.com/aclements/actlysched/internal/config"
	"github.com/aclements/actlysched/internal/kernel"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T, numCores int) *kernel.Kernel {
	t.Helper()
	cfg := config.Default()
	cfg.MaxCores = numCores
	k := kernel.New(cfg)
	for c := 0; c < numCores; c++ {
		require.NoError(t, k.InitCore(c, 64, 64))
	}
	return k
}

func TestSpawnChargesCostAndEnqueues(t *testing.T) {
	k := newTestKernel(t, 1)
	k.Schedule(0) // nothing ready, current stays nil

	pid, ok := Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	assert.True(t, ok)
	assert.NotZero(t, pid)
	assert.Equal(t, uint64(config.DefaultReductions-CostSpawn), k.GetReductions(0))
	st, err := k.CoreState(0)
	require.NoError(t, err)
	assert.Equal(t, 1, st.QueueLen(pcb.Normal))
}

func TestSpawnFailsWhenReductionsInsufficient(t *testing.T) {
	k := newTestKernel(t, 1)
	k.SetReductions(0, CostSpawn-1)

	_, ok := Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	assert.False(t, ok, "bif_trap_check must refuse when the budget doesn't cover the cost")
}

func TestYieldFailsTrapCheckPreemptsCurrent(t *testing.T) {
	k := newTestKernel(t, 1)
	a, _ := Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	b, _ := Spawn(k, 0, 0x2000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	cur := k.Schedule(0)
	require.Equal(t, a, cur.PID)
	k.SetReductions(0, CostYield-1)

	ok := Yield(k, 0)
	assert.False(t, ok, "bif_trap_check must refuse when the budget doesn't cover the cost")

	// A failed trap check must itself preempt the running process, so a
	// caller that just retries the BIF gets a process with a fresh
	// budget rather than spinning against the same refusal forever.
	assert.Equal(t, pcb.Ready, cur.State, "the process that failed its trap check must be preempted, not left running")
	next := k.GetCurrent(0)
	require.Equal(t, b, next.PID, "the replacement dispatched by the preempt must be the other ready process")
	assert.Equal(t, uint64(config.DefaultReductions), k.GetReductions(0))
}

func TestYieldRotatesCurrentAndChargesCost(t *testing.T) {
	k := newTestKernel(t, 1)
	pid1, _ := Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	pid2, _ := Spawn(k, 0, 0x2000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	require.Equal(t, pid1, k.Schedule(0).PID)

	ok := Yield(k, 0)
	require.True(t, ok)
	// Yield's trailing Schedule dispatches a replacement with a fresh budget.
	assert.Equal(t, uint64(config.DefaultReductions), k.GetReductions(0))

	cur := k.GetCurrent(0)
	require.NotNil(t, cur)
	assert.Equal(t, pid2, cur.PID, "round robin: the second spawned process runs next")
}

func TestExitFreesCurrentAndDispatchesNext(t *testing.T) {
	k := newTestKernel(t, 1)
	Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	Spawn(k, 0, 0x2000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	k.Schedule(0)

	ok := Exit(k, 0)
	require.True(t, ok)
	assert.NotNil(t, k.GetCurrent(0), "the next ready process must be dispatched after exit")
}

func TestExitWithNoCurrentFails(t *testing.T) {
	k := newTestKernel(t, 1)
	assert.False(t, Exit(k, 0))
}

func TestSendDeliversAndCostsReductions(t *testing.T) {
	k := newTestKernel(t, 1)
	_, _ = Spawn(k, 0, 0x1000, pcb.Normal, pcb.KindMixed, config.MinStackSize, config.MinHeapSize)
	p := k.Schedule(0)
	require.NotNil(t, p)

	before := k.GetReductions(0)
	ok := Send(k, 0, p, pcb.Message{Pattern: pcb.MatchAny, Data: 42})
	require.True(t, ok)
	assert.Equal(t, before-CostSend, k.GetReductions(0))
	assert.Equal(t, 1, p.Mailbox.Len())
}

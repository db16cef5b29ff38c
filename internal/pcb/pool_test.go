// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateAssignsMonotonicPID(t *testing.T) {
	p := NewPool(4)
	a, err := p.Allocate(0x1000, Normal, 4096, 1024)
	require.NoError(t, err)
	b, err := p.Allocate(0x1000, Normal, 4096, 1024)
	require.NoError(t, err)
	assert.Less(t, a.PID, b.PID)
	assert.Equal(t, Created, a.State)
}

func TestPoolExhausted(t *testing.T) {
	p := NewPool(2)
	_, err := p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err)
	_, err = p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err)
	_, err = p.Allocate(0, Normal, 4096, 1024)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestPoolFreeZeroesAndRecycles(t *testing.T) {
	p := NewPool(1)
	a, err := p.Allocate(0x1000, Normal, 4096, 1024)
	require.NoError(t, err)
	a.State = Running

	p.Free(a)
	_, err = p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err, "freed slot should be recyclable")

	assert.Equal(t, Created, a.State, "Free must zero the slot before reuse")
}

func TestPoolFreeOfForeignPCBIsNoop(t *testing.T) {
	p1 := NewPool(1)
	p2 := NewPool(1)
	a, _ := p1.Allocate(0, Normal, 4096, 1024)
	b, _ := p2.Allocate(0, Normal, 4096, 1024)

	p1.Free(b) // b belongs to p2; must not corrupt p1
	assert.Equal(t, 1, p1.Len())
	_ = a
}

func TestPoolExpand(t *testing.T) {
	p := NewPool(1)
	first, err := p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err)

	require.False(t, p.Expand(4, false), "expand must not be required to succeed")
	_, err = p.Allocate(0, Normal, 4096, 1024)
	require.ErrorIs(t, err, ErrExhausted)

	require.True(t, p.Expand(4, true))
	second, err := p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Cap())

	// Expand must not relocate slots allocated before the growth: freeing
	// a pre-expand PCB has to still find and recycle its original slot.
	p.Free(first)
	assert.Equal(t, 1, p.Len())
	third, err := p.Allocate(0, Normal, 4096, 1024)
	require.NoError(t, err, "first's slot must be recyclable after Expand")
	assert.Same(t, first, third, "recycled slot must be the same address first had")

	_ = second
}

// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package steal

import (
	"sync"
	"testing"

	"github.com/aclements/actlysched/internal/pcb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDequeOwnerLIFO(t *testing.T) {
	d := NewDeque(4)
	a, b, c := &pcb.PCB{PID: 1}, &pcb.PCB{PID: 2}, &pcb.PCB{PID: 3}
	d.PushBottom(a)
	d.PushBottom(b)
	d.PushBottom(c)

	assert.Same(t, c, d.PopBottom())
	assert.Same(t, b, d.PopBottom())
	assert.Same(t, a, d.PopBottom())
	assert.Nil(t, d.PopBottom())
}

func TestDequeThiefFIFO(t *testing.T) {
	d := NewDeque(4)
	a, b, c := &pcb.PCB{PID: 1}, &pcb.PCB{PID: 2}, &pcb.PCB{PID: 3}
	d.PushBottom(a)
	d.PushBottom(b)
	d.PushBottom(c)

	assert.Same(t, a, d.PopTop())
	assert.Same(t, b, d.PopTop())
	assert.Same(t, c, d.PopTop())
	assert.Nil(t, d.PopTop())
}

func TestDequeEmptyReturnsNil(t *testing.T) {
	d := NewDeque(4)
	assert.Nil(t, d.PopBottom())
	assert.Nil(t, d.PopTop())
}

func TestDequeGrows(t *testing.T) {
	d := NewDeque(2)
	n := 100
	pcbs := make([]*pcb.PCB, n)
	for i := 0; i < n; i++ {
		pcbs[i] = &pcb.PCB{PID: uint64(i)}
		d.PushBottom(pcbs[i])
	}
	require.Equal(t, n, d.Len())
	for i := n - 1; i >= 0; i-- {
		assert.Same(t, pcbs[i], d.PopBottom())
	}
}

// TestDequeConcurrentStealIsExclusive steals concurrently from many
// thief goroutines and checks that no pushed PCB is handed to more than
// one caller.
func TestDequeConcurrentStealIsExclusive(t *testing.T) {
	d := NewDeque(16)
	const n = 2000
	items := make([]*pcb.PCB, n)
	for i := range items {
		items[i] = &pcb.PCB{PID: uint64(i)}
		d.PushBottom(items[i])
	}

	var mu sync.Mutex
	seen := make(map[uint64]int, n)
	record := func(p *pcb.PCB) {
		if p == nil {
			return
		}
		mu.Lock()
		seen[p.PID]++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				p := d.PopTop()
				if p == nil {
					if d.IsEmpty() {
						return
					}
					continue
				}
				record(p)
			}
		}()
	}
	wg.Wait()

	for _, count := range seen {
		assert.LessOrEqual(t, count, 1, "a PCB must be returned to at most one caller")
	}
	assert.LessOrEqual(t, len(seen), n)
}

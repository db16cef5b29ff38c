// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package steal

import (
	"math/rand"

	"github.com/aclements/actlysched/internal/config"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/topology"
)

// CoreView is the slice of a per-core scheduler state the work-stealing
// engine needs. corestate.State implements this; steal never reaches
// into corestate's internals directly, avoiding an import cycle between
// the two packages.
type CoreView interface {
	ID() int
	// QueueLen reports how many ready PCBs are queued at priority pri.
	QueueLen(pri pcb.Priority) int
	// Deque returns this core's work-stealing deque.
	Deque() *Deque
	// EnqueueReady links p into this core's ready queue at p.Priority's
	// tail and marks it Ready, owned by this core. Called only on a
	// core's own behalf (Migrate's tgt is always the calling core), so
	// it's safe to call directly from any goroutine that owns tgt.
	EnqueueReady(p *pcb.PCB)
	// PostStealOut records that a thief has taken p out of this core's
	// deque, so this core must unlink p from its own ready queue the
	// next time it drains pending steal-outs. Safe to call from any
	// goroutine; the actual queue mutation happens later, on this
	// core's own goroutine.
	PostStealOut(p *pcb.PCB) bool
}

// weight gives each priority level's contribution to a core's load, used
// by get_scheduler_load. Higher priority work counts for more: it's what
// will run soonest and is costlier to leave unstolen.
var weight = map[pcb.Priority]uint32{
	pcb.Max:    4,
	pcb.High:   3,
	pcb.Normal: 2,
	pcb.Low:    1,
}

// Engine implements the work-stealing engine's load-balancing
// operations: get_scheduler_load, find_busiest, the three
// select_victim_* strategies, is_steal_allowed, try_steal, and migrate.
type Engine struct {
	cores         []CoreView
	topo          *topology.Topology
	maxMigrations uint32
	minStealQueue int
}

// NewEngine builds an Engine over cores (indexed by CoreView.ID(), which
// must run 0..len(cores)-1), using topo for locality-aware victim
// selection.
func NewEngine(cores []CoreView, topo *topology.Topology, maxMigrations uint32, minStealQueue int) *Engine {
	return &Engine{cores: cores, topo: topo, maxMigrations: maxMigrations, minStealQueue: minStealQueue}
}

// GetLoad returns core's priority-weighted load: Σ count(q) × weight(priority).
func (e *Engine) GetLoad(core int) uint32 {
	if core < 0 || core >= len(e.cores) {
		return 0
	}
	c := e.cores[core]
	var total uint32
	for pri := pcb.Max; pri < pcb.NumPriorities; pri++ {
		total += uint32(c.QueueLen(pri)) * weight[pri]
	}
	return total
}

// FindBusiest returns argmax over cores != current of GetLoad, or current
// itself if there is no other core.
func (e *Engine) FindBusiest(current int) int {
	best := current
	var bestLoad uint32
	found := false
	for _, c := range e.cores {
		id := c.ID()
		if id == current {
			continue
		}
		load := e.GetLoad(id)
		if !found || load > bestLoad {
			best, bestLoad, found = id, load, true
		}
	}
	return best
}

// SelectVictimRandom returns a uniformly random core other than current,
// or current itself if it is the only core.
func (e *Engine) SelectVictimRandom(current int) int {
	if len(e.cores) <= 1 {
		return current
	}
	for {
		id := e.cores[rand.Intn(len(e.cores))].ID()
		if id != current {
			return id
		}
	}
}

// SelectVictimByLoad returns the busiest other core, or current if every
// other core is idle (load 0).
func (e *Engine) SelectVictimByLoad(current int) int {
	busiest := e.FindBusiest(current)
	if busiest == current {
		return current
	}
	if e.GetLoad(busiest) == 0 {
		return current
	}
	return busiest
}

// SelectVictimLocality prefers a core sharing current's NUMA node or
// cluster, falling back to SelectVictimByLoad when none qualifies.
func (e *Engine) SelectVictimLocality(current int) int {
	if e.topo == nil {
		return e.SelectVictimByLoad(current)
	}
	var best int = -1
	var bestLoad uint32
	for _, c := range e.cores {
		id := c.ID()
		if id == current {
			continue
		}
		if !e.topo.SameNUMANode(current, id) && !e.topo.SameCluster(current, id) {
			continue
		}
		load := e.GetLoad(id)
		if best == -1 || load > bestLoad {
			best, bestLoad = id, load
		}
	}
	if best == -1 || bestLoad == 0 {
		return e.SelectVictimByLoad(current)
	}
	return best
}

// IsStealAllowed reports whether p may move from src to tgt: distinct
// valid cores, tgt in p's affinity mask, and migration budget remaining.
func (e *Engine) IsStealAllowed(src, tgt int, p *pcb.PCB) bool {
	return topology.IsMigrationAllowed(p, src, tgt, len(e.cores), e.maxMigrations)
}

const maxStealAttempts = 4

// TrySteal attempts to steal one ready PCB for current, per strategy.
// It tries up to maxStealAttempts distinct victims before giving up.
func (e *Engine) TrySteal(current int, strategy VictimStrategyFunc) *pcb.PCB {
	if len(e.cores) <= 1 {
		return nil
	}
	tried := make(map[int]bool, maxStealAttempts)
	for attempt := 0; attempt < maxStealAttempts; attempt++ {
		victim := strategy(e, current)
		if victim == current || tried[victim] {
			continue
		}
		tried[victim] = true

		vc := e.cores[victim]
		if vc.Deque().Len() < e.minStealQueue {
			continue
		}
		p := vc.Deque().PopTop()
		if p == nil {
			continue
		}
		if !e.IsStealAllowed(victim, current, p) {
			// Put it back for its owner; we're not allowed to take it.
			vc.Deque().PushBottom(p)
			continue
		}
		if e.Migrate(p, victim, current) {
			return p
		}
	}
	return nil
}

// Migrate moves p from src to tgt: posts a steal-out intent so src
// unlinks p from its own ready queue on its own goroutine, updates
// owning_core and migration_count, and enqueues it on tgt (the calling
// core) at the same priority. Returns false if src/tgt are invalid.
//
// p has already been popped from src's deque by the caller (TrySteal's
// PopTop) by the time Migrate runs, so p is exclusively the caller's to
// hand to tgt; only src's non-atomic ready queue still needs unlinking,
// and only src's own goroutine may safely do that.
func (e *Engine) Migrate(p *pcb.PCB, src, tgt int) bool {
	if src < 0 || src >= len(e.cores) || tgt < 0 || tgt >= len(e.cores) {
		return false
	}
	for !e.cores[src].PostStealOut(p) {
		// Queue momentarily full: retry rather than leave p linked into
		// src's ready queue after it has already been handed to tgt.
	}
	p.OwningCore = tgt
	p.MigrationCount++
	e.cores[tgt].EnqueueReady(p)
	return true
}

// VictimStrategyFunc picks a victim core for current.
type VictimStrategyFunc func(e *Engine, current int) int

// StrategyFunc resolves a config.VictimStrategy to its implementation.
func (e *Engine) StrategyFunc(s config.VictimStrategy) VictimStrategyFunc {
	switch s {
	case config.VictimRandom:
		return (*Engine).SelectVictimRandom
	case config.VictimLocality:
		return (*Engine).SelectVictimLocality
	default:
		return (*Engine).SelectVictimByLoad
	}
}

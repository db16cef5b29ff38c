// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel is the scheduler kernel: per-core dispatch, priority
// queues, reduction-based preemption, blocking and wakeup, and the glue
// that drives corestate/pcb/steal/topology together into one engine.
// One Kernel instance is shared by every core's goroutine; each method
// that takes a core id touches only that core's corestate.State (plus,
// for cross-core wake and steal, the narrow cross-core interfaces those
// packages expose) so no kernel-level locking is needed.
package kernel

import (
	"github.com/aclements/actlysched/internal/config"
	"github.com/aclements/actlysched/internal/corestate"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/steal"
	"github.com/aclements/actlysched/internal/topology"
)

// invariant aborts the process if cond is false. Reserved for conditions
// that indicate a bug in the kernel itself, never for bad caller input
// (those return an error instead).
func invariant(cond bool, msg string) {
	if !cond {
		panic("actlysched: invariant violated: " + msg)
	}
}

// Kernel owns the PCB pool, one corestate.State per core, the
// work-stealing engine, and the topology oracle. It is scheduler_state's
// Go realization: New is scheduler_state_init, InitCore is
// scheduler_init, and Destroy is scheduler_state_destroy.
type Kernel struct {
	cfg   config.Config
	pool  *pcb.Pool
	cores []*corestate.State
	views []steal.CoreView
	topo  *topology.Topology

	engine       *steal.Engine
	victimChoose steal.VictimStrategyFunc

	nextTimerID uint64
}

// New allocates a Kernel for up to cfg.MaxCores cores and a PCB pool of
// cfg.PoolSize slots. No per-core state is allocated until InitCore is
// called for that core id, mirroring scheduler_state_init's "array of
// MAX_CORES slots, individually initialized by scheduler_init" shape.
func New(cfg config.Config) *Kernel {
	k := &Kernel{
		cfg:   cfg,
		pool:  pcb.NewPool(cfg.PoolSize),
		cores: make([]*corestate.State, cfg.MaxCores),
		views: make([]steal.CoreView, 0, cfg.MaxCores),
		topo:  topology.Detect(cfg.MaxCores),
	}
	k.rebuildEngine()
	return k
}

// Destroy releases a Kernel's per-core state. The PCB pool is left to
// the garbage collector; there is no explicit memory to unmap in Go.
func (k *Kernel) Destroy() {
	for i := range k.cores {
		k.cores[i] = nil
	}
	k.rebuildEngine()
}

// InitCore brings up scheduler state for core id, with the given
// work-stealing deque and cross-core wake queue capacities and a reduction
// budget of cfg.DefaultReductions, so BIFs can be invoked on the core
// before its first dispatch. Safe to call more than once; later calls are
// a no-op once a core is initialized.
func (k *Kernel) InitCore(core, dequeCapacity, wakeQueueCapacity int) error {
	if core < 0 || core >= len(k.cores) {
		return ErrInvalidCore
	}
	if k.cores[core] == nil {
		k.cores[core] = corestate.New(core, dequeCapacity, wakeQueueCapacity)
		k.cores[core].SetReductions(k.cfg.DefaultReductions)
		k.rebuildEngine()
	}
	return nil
}

func (k *Kernel) rebuildEngine() {
	k.views = k.views[:0]
	for _, s := range k.cores {
		if s != nil {
			k.views = append(k.views, s)
		}
	}
	k.engine = steal.NewEngine(k.views, k.topo, k.cfg.MaxMigrations, k.cfg.MinStealQueue)
	k.victimChoose = k.engine.StrategyFunc(k.cfg.VictimStrategy)
}

// Topology exposes the kernel's topology oracle, used by the root
// façade's Topology accessor.
func (k *Kernel) Topology() *topology.Topology { return k.topo }

// CoreState exposes one core's raw corestate.State, for the telemetry
// and admin packages to read counters and queue lengths from. Kernel
// mutation methods remain the sanctioned way to change scheduler state;
// this is read access only by convention.
func (k *Kernel) CoreState(core int) (*corestate.State, error) {
	return k.core(core)
}

// NumCores reports how many core slots the Kernel was created with
// (cfg.MaxCores), regardless of how many have been initialized.
func (k *Kernel) NumCores() int { return len(k.cores) }

// Pool exposes the kernel's PCB pool, for callers that allocate/free PCBs
// directly.
func (k *Kernel) Pool() *pcb.Pool { return k.pool }

func (k *Kernel) core(id int) (*corestate.State, error) {
	if id < 0 || id >= len(k.cores) || k.cores[id] == nil {
		return nil, ErrInvalidCore
	}
	return k.cores[id], nil
}

// Spawn allocates a PCB from the pool and enqueues it Ready on core at
// priority pri. This is process_create plus the first enqueue; actly_spawn
// (internal/bif) layers reduction accounting on top.
func (k *Kernel) Spawn(core int, entry uint64, pri pcb.Priority, kind pcb.Kind, stackSize, heapSize uint64) (*pcb.PCB, error) {
	st, err := k.core(core)
	if err != nil {
		return nil, err
	}
	if !pri.Valid() {
		return nil, ErrInvalidPriority
	}
	if stackSize < config.MinStackSize || heapSize < config.MinHeapSize {
		return nil, ErrInvalidSize
	}
	p, err := k.pool.Allocate(entry, pri, stackSize, heapSize)
	if err != nil {
		return nil, ErrExhausted
	}
	p.Kind = kind
	st.EnqueueReady(p)
	return p, nil
}

// DestroyProcess releases p back to the pool. Caller must have already removed
// p from current/ready/waiting (actly_exit does this before calling).
func (k *Kernel) DestroyProcess(p *pcb.PCB) error {
	if p == nil {
		return ErrInvalidPCB
	}
	p.State = pcb.Terminated
	k.pool.Free(p)
	return nil
}

// Enqueue appends p to the tail of core's priority-pri queue, setting
// p.State = Ready and p.OwningCore = core.
func (k *Kernel) Enqueue(core int, p *pcb.PCB, pri pcb.Priority) error {
	st, err := k.core(core)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrInvalidPCB
	}
	if !pri.Valid() {
		return ErrInvalidPriority
	}
	p.Priority = pri
	st.EnqueueReady(p)
	return nil
}

// DequeueFrom pops the head of q, or nil if q is empty. This is the raw
// primitive underneath Schedule's priority-scan loop, exposed separately
// for callers that manage their own queues.
func (k *Kernel) DequeueFrom(q *pcb.Queue) *pcb.PCB {
	if q == nil {
		return nil
	}
	return q.Dequeue()
}

// Schedule drains pending cross-core wakes and steal-out intents
// (unlinking any PCB a thief has already taken from this core's own
// ready queue), then scans priorities Max..Low for the first non-empty
// ready queue, dequeues its head, dispatches it as core's current
// process with a fresh reduction budget, and returns it. Returns nil
// without touching current if every ready queue is empty.
func (k *Kernel) Schedule(core int) *pcb.PCB {
	st, err := k.core(core)
	if err != nil {
		return nil
	}
	st.DrainWakes(func(p *pcb.PCB) { k.wakeLocal(st, p) })
	st.DrainStealOuts(func(p *pcb.PCB) { st.RemoveReady(p) })

	for pri := pcb.Max; pri < pcb.NumPriorities; pri++ {
		q := st.ReadyQueue(pri)
		p := q.Dequeue()
		if p == nil {
			continue
		}
		p.State = pcb.Running
		p.LastScheduled = st.Now()
		st.SetCurrent(p)
		st.SetReductions(k.cfg.DefaultReductions)
		p.ReductionCount = k.cfg.DefaultReductions
		st.Counters.Scheduled.Add(1)
		return p
	}
	return nil
}

// Idle is called when Schedule returns nil. It attempts one work steal
// and returns the stolen PCB dispatched as described in Schedule's
// contract, or nil if nothing could be stolen (the caller should park
// the core's OS thread until the next wake or tick).
func (k *Kernel) Idle(core int) *pcb.PCB {
	st, err := k.core(core)
	if err != nil {
		return nil
	}
	stolen := k.engine.TrySteal(core, k.victimChoose)
	if stolen == nil {
		return nil
	}
	st.Counters.Steals.Add(1)
	st.Counters.Migrations.Add(1)
	return k.Schedule(core)
}

// GetCurrent returns the PCB currently Running on core, or nil.
func (k *Kernel) GetCurrent(core int) *pcb.PCB {
	st, err := k.core(core)
	if err != nil {
		return nil
	}
	return st.Current()
}

// SetCurrent forces core's current PCB, bypassing Schedule's selection.
// Used by embedders restoring a checkpointed run; the kernel itself
// never needs this outside Schedule/transferOut.
func (k *Kernel) SetCurrent(core int, p *pcb.PCB) error {
	st, err := k.core(core)
	if err != nil {
		return err
	}
	st.SetCurrent(p)
	return nil
}

// GetReductions returns core's remaining reduction budget.
func (k *Kernel) GetReductions(core int) uint64 {
	st, err := k.core(core)
	if err != nil {
		return 0
	}
	return st.Reductions()
}

// SetReductions sets core's remaining reduction budget, mirroring it
// onto the current PCB for introspection.
func (k *Kernel) SetReductions(core int, n uint64) error {
	st, err := k.core(core)
	if err != nil {
		return err
	}
	st.SetReductions(n)
	if cur := st.Current(); cur != nil {
		cur.ReductionCount = n
	}
	return nil
}

// Tick advances core's view of monotonic time, used by check_timer_wakeups.
func (k *Kernel) Tick(core int, now uint64) error {
	st, err := k.core(core)
	if err != nil {
		return err
	}
	st.Tick(now)
	return nil
}

// DrainStealOuts unlinks from core's own ready queues every PCB a thief
// has taken via the work-stealing engine since the last drain. Schedule
// always does this first; this is exposed separately for callers (and
// GetLoad/introspection) that want core's ready-queue accounting
// reconciled without also dispatching a new current process.
func (k *Kernel) DrainStealOuts(core int) error {
	st, err := k.core(core)
	if err != nil {
		return err
	}
	st.DrainStealOuts(func(p *pcb.PCB) { st.RemoveReady(p) })
	return nil
}

// GetLoad, FindBusiest, TrySteal and Migrate delegate to the
// work-stealing engine; exposed here so callers needn't reach into
// internal/steal directly.

func (k *Kernel) GetLoad(core int) uint32     { return k.engine.GetLoad(core) }
func (k *Kernel) FindBusiest(core int) int    { return k.engine.FindBusiest(core) }

// TryStealInto attempts one steal on behalf of thief, without going
// through Idle's dispatch: the stolen PCB is left Ready on thief rather
// than scheduled. Exposed through the root façade's TryStealInto.
func (k *Kernel) TryStealInto(thief int) *pcb.PCB {
	stolen := k.engine.TrySteal(thief, k.victimChoose)
	if stolen == nil {
		return nil
	}
	if st, err := k.core(thief); err == nil {
		st.Counters.Migrations.Add(1)
	}
	return stolen
}

// Migrate moves p from src to tgt unconditionally (no affinity/cap
// check — callers that need is_steal_allowed semantics should check
// topology.CheckAffinity / topology.IsMigrationAllowed first, as TrySteal
// does).
func (k *Kernel) Migrate(p *pcb.PCB, src, tgt int) bool {
	ok := k.engine.Migrate(p, src, tgt)
	if ok {
		if st, err := k.core(tgt); err == nil {
			st.Counters.Migrations.Add(1)
		}
	}
	return ok
}

// CheckAffinity reports whether core is in p's affinity mask.
func (k *Kernel) CheckAffinity(p *pcb.PCB, core int) bool {
	return topology.CheckAffinity(p, core)
}

// GetOptimalCore picks a starting core for a process of the given kind.
func (k *Kernel) GetOptimalCore(kind pcb.Kind) int {
	return k.topo.GetOptimalCore(kind)
}

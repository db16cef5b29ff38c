// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package actlysched is a BEAM-inspired preemptive scheduler kernel for
// user-space lightweight processes: per-core ready queues, reduction-based
// preemption, voluntary and conditional yielding, blocking and wakeup,
// and Chase-Lev work stealing with load- and locality-aware victim
// selection, on top of a pool-allocated process control block.
//
// The package is a thin, stable façade over internal/kernel,
// internal/bif, internal/pcb, and internal/topology; it exists so
// embedders depend on one import path instead of reaching into internal
// packages, and so the operation names here match the scheduler's own
// vocabulary rather than Go idiom where the two diverge (e.g. Yield
// rather than a context.Context-cancellation pattern — this scheduler
// is cooperative by construction, not goroutine-based).
package actlysched

import (
	"fmt"

	"github.com/aclements/actlysched/internal/affinity"
	"github.com/aclements/actlysched/internal/bif"
	"github.com/aclements/actlysched/internal/config"
	"github.com/aclements/actlysched/internal/kernel"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/topology"
	"golang.org/x/sys/unix"
)

// Constants exposed to callers.
const (
	MaxCores          = config.MaxCores
	NumPriorities     = config.NumPriorities
	DefaultReductions = config.DefaultReductions
	PCBSize           = config.PCBSize
	MaxBlockingTime   = config.MaxBlockingTime
	MaxMigrations     = config.MaxMigrations
	MinStealQueue     = config.MinStealQueue
)

// Re-exported types so callers never need to import internal/pcb directly.
type (
	PCB            = pcb.PCB
	Priority       = pcb.Priority
	Kind           = pcb.Kind
	BlockingReason = pcb.BlockingReason
	Message        = pcb.Message
	Config         = config.Config
	VictimStrategy = config.VictimStrategy
)

const (
	Max  = pcb.Max
	High = pcb.High

	Normal = pcb.Normal
	Low    = pcb.Low
)

const (
	ReasonReceive = pcb.ReasonReceive
	ReasonTimer   = pcb.ReasonTimer
	ReasonIO      = pcb.ReasonIO
)

const (
	KindCPUBound = pcb.KindCPUBound
	KindIOBound  = pcb.KindIOBound
	KindMixed    = pcb.KindMixed
)

const MatchAny = pcb.MatchAny

// DefaultConfig returns the source's documented default configuration.
func DefaultConfig() Config { return config.Default() }

// Scheduler is scheduler_state: the whole kernel, with max_cores/NUM_PRIORITIES
// style tunables fixed at construction time via Config.
type Scheduler struct {
	k *kernel.Kernel
}

// NewScheduler implements scheduler_state_init(max_cores): allocates
// scheduler state for up to cfg.MaxCores cores.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{k: kernel.New(cfg)}
}

// Destroy implements scheduler_state_destroy.
func (s *Scheduler) Destroy() { s.k.Destroy() }

// InitCore implements scheduler_init(state, core): brings up one core's
// scheduler state, with its work-stealing deque and cross-core wake
// queue sized by dequeCapacity/wakeQueueCapacity.
func (s *Scheduler) InitCore(core, dequeCapacity, wakeQueueCapacity int) error {
	return s.k.InitCore(core, dequeCapacity, wakeQueueCapacity)
}

// ProcessCreate implements process_create: allocate a PCB, assign kind
// (the scheduling hint used by GetOptimalCore), and enqueue it Ready on
// core at priority pri.
func (s *Scheduler) ProcessCreate(core int, entry uint64, pri Priority, kind Kind, stackSize, heapSize uint64) (*PCB, error) {
	return s.k.Spawn(core, entry, pri, kind, stackSize, heapSize)
}

// ProcessDestroy implements process_destroy: return p to the pool. p
// must already be removed from any queue (Exit does this via Block's
// absence; callers destroying a process directly must Wake/Block it out
// of Waiting first, or call this only on a process they hold exclusively,
// e.g. their own `current`).
func (s *Scheduler) ProcessDestroy(p *PCB) error {
	return s.k.DestroyProcess(p)
}

// Schedule implements schedule(core).
func (s *Scheduler) Schedule(core int) *PCB { return s.k.Schedule(core) }

// Enqueue implements enqueue(core, pcb, priority).
func (s *Scheduler) Enqueue(core int, p *PCB, pri Priority) error {
	return s.k.Enqueue(core, p, pri)
}

// DequeueFrom implements dequeue_from(queue).
func (s *Scheduler) DequeueFrom(q *pcb.Queue) *PCB { return s.k.DequeueFrom(q) }

// Idle implements idle(core).
func (s *Scheduler) Idle(core int) *PCB { return s.k.Idle(core) }

// GetCurrent implements get_current(core).
func (s *Scheduler) GetCurrent(core int) *PCB { return s.k.GetCurrent(core) }

// SetCurrent implements set_current(core, pcb).
func (s *Scheduler) SetCurrent(core int, p *PCB) error { return s.k.SetCurrent(core, p) }

// GetReductions implements get_reductions(core).
func (s *Scheduler) GetReductions(core int) uint64 { return s.k.GetReductions(core) }

// SetReductions implements set_reductions(core, n).
func (s *Scheduler) SetReductions(core int, n uint64) error { return s.k.SetReductions(core, n) }

// DecrementReductions implements decrement_reductions(core).
func (s *Scheduler) DecrementReductions(core int) bool { return s.k.DecrementReductions(core) }

// YieldCheck implements yield_check(core, pcb).
func (s *Scheduler) YieldCheck(core int, p *PCB) bool { return s.k.YieldCheck(core, p) }

// Preempt implements preempt(core, pcb).
func (s *Scheduler) Preempt(core int, p *PCB) *PCB { return s.k.Preempt(core, p) }

// Yield implements yield(core, pcb).
func (s *Scheduler) Yield(core int, p *PCB) *PCB { return s.k.Yield(core, p) }

// YieldConditional implements yield_conditional(core, pcb).
func (s *Scheduler) YieldConditional(core int, p *PCB) bool {
	return s.k.YieldConditional(core, p)
}

// Block implements block(core, pcb, reason).
func (s *Scheduler) Block(core int, p *PCB, reason BlockingReason) *PCB {
	return s.k.Block(core, p, reason)
}

// Wake implements wake(core, pcb).
func (s *Scheduler) Wake(core int, p *PCB) bool { return s.k.Wake(core, p) }

// BlockOnReceive implements block_on_receive(core, pcb, pattern).
func (s *Scheduler) BlockOnReceive(core int, p *PCB, pattern uint64) (msg Message, ok bool, replacement *PCB) {
	return s.k.BlockOnReceive(core, p, pattern)
}

// BlockOnTimer implements block_on_timer(core, pcb, timeout_ticks).
func (s *Scheduler) BlockOnTimer(core int, p *PCB, timeoutTicks uint64) (timerID uint64, replacement *PCB, err error) {
	return s.k.BlockOnTimer(core, p, timeoutTicks)
}

// BlockOnIO implements block_on_io(core, pcb, descriptor).
func (s *Scheduler) BlockOnIO(core int, p *PCB, descriptor uint64) *PCB {
	return s.k.BlockOnIO(core, p, descriptor)
}

// CheckTimerWakeups implements check_timer_wakeups(core).
func (s *Scheduler) CheckTimerWakeups(core int) int { return s.k.CheckTimerWakeups(core) }

// CancelTimer implements cancel_timer(core, pcb, id): withdraw a pending
// timer wait before it fires.
func (s *Scheduler) CancelTimer(core int, p *PCB, id uint64) bool {
	return s.k.CancelTimer(core, p, id)
}

// Send delivers msg to p's mailbox, waking p if it is blocked on a
// matching receive pattern. Supplemented from the original's
// message-passing test coverage; not present in the distilled BIF table.
func (s *Scheduler) Send(core int, p *PCB, msg Message) bool {
	return s.k.Send(core, p, msg)
}

// Tick advances core's view of monotonic time, consumed by
// CheckTimerWakeups.
func (s *Scheduler) Tick(core int, now uint64) error { return s.k.Tick(core, now) }

// GetLoad implements get_scheduler_load(core).
func (s *Scheduler) GetLoad(core int) uint32 { return s.k.GetLoad(core) }

// FindBusiest implements find_busiest(current).
func (s *Scheduler) FindBusiest(core int) int { return s.k.FindBusiest(core) }

// TryStealInto implements try_steal(current).
func (s *Scheduler) TryStealInto(current int) *PCB { return s.k.TryStealInto(current) }

// Migrate implements migrate(pcb, src, tgt).
func (s *Scheduler) Migrate(p *PCB, src, tgt int) bool { return s.k.Migrate(p, src, tgt) }

// SetAffinity implements set_affinity(pcb, mask).
func (s *Scheduler) SetAffinity(p *PCB, mask unix.CPUSet) error {
	if p == nil {
		return kernel.ErrInvalidPCB
	}
	p.AffinityMask = mask
	return nil
}

// GetAffinity implements get_affinity(pcb).
func (s *Scheduler) GetAffinity(p *PCB) unix.CPUSet {
	if p == nil {
		return unix.CPUSet{}
	}
	return p.AffinityMask
}

// CheckAffinity implements check_affinity(pcb, core).
func (s *Scheduler) CheckAffinity(p *PCB, core int) bool { return s.k.CheckAffinity(p, core) }

// RestrictAffinity narrows p's affinity mask to its intersection with
// mask — e.g. pinning p to whichever of its currently eligible cores
// also belong to one NUMA node. Fails rather than leave p with no core
// it could ever be scheduled or migrated onto.
func (s *Scheduler) RestrictAffinity(p *PCB, mask unix.CPUSet) error {
	if p == nil {
		return kernel.ErrInvalidPCB
	}
	narrowed := affinity.Intersect(p.AffinityMask, mask)
	if narrowed.Count() == 0 {
		return fmt.Errorf("%w: %s", kernel.ErrAffinityViolation, affinity.String(narrowed))
	}
	p.AffinityMask = narrowed
	return nil
}

// GrantAffinity widens p's affinity mask to include every core in mask —
// e.g. a core coming back online after maintenance.
func (s *Scheduler) GrantAffinity(p *PCB, mask unix.CPUSet) error {
	if p == nil {
		return kernel.ErrInvalidPCB
	}
	p.AffinityMask = affinity.Union(p.AffinityMask, mask)
	return nil
}

// RevokeAffinity removes every core in mask from p's affinity set — e.g.
// marking a core offline for maintenance. Fails rather than leave p with
// no core it could ever be scheduled or migrated onto.
func (s *Scheduler) RevokeAffinity(p *PCB, mask unix.CPUSet) error {
	if p == nil {
		return kernel.ErrInvalidPCB
	}
	narrowed := affinity.Difference(p.AffinityMask, mask)
	if narrowed.Count() == 0 {
		return fmt.Errorf("%w: %s", kernel.ErrAffinityViolation, affinity.String(narrowed))
	}
	p.AffinityMask = narrowed
	return nil
}

// AffinityCores returns the sorted list of core ids set in mask, by
// walking it with affinity.Range.
func AffinityCores(mask unix.CPUSet) []int {
	var cores []int
	affinity.Range(mask, func(core int) { cores = append(cores, core) })
	return cores
}

// GetOptimalCore implements get_optimal_core(kind).
func (s *Scheduler) GetOptimalCore(kind Kind) int { return s.k.GetOptimalCore(kind) }

// Topology exposes the scheduler's core-classification oracle directly,
// for embedders that want CoresOfKind/SameCluster/SameNUMANode beyond
// the single-core queries above.
func (s *Scheduler) Topology() *topology.Topology { return s.k.Topology() }

// Kernel exposes the underlying internal/kernel.Kernel, for the admin
// and telemetry packages, which need core-state access this façade
// deliberately doesn't expose as part of its own public surface.
func (s *Scheduler) Kernel() *kernel.Kernel { return s.k }

// BIFs: built-in operations invoked by the running process itself, each
// gated by bif_trap_check against the running process's reduction
// budget.

// BifTrapCheck implements bif_trap_check(core, cost).
func (s *Scheduler) BifTrapCheck(core int, cost uint64) bool {
	return bif.TrapCheck(s.k, core, cost)
}

// ActlyYield implements actly_yield(core).
func (s *Scheduler) ActlyYield(core int) bool { return bif.Yield(s.k, core) }

// ActlySpawn implements actly_spawn(core, entry, pri, stack_sz, heap_sz).
func (s *Scheduler) ActlySpawn(core int, entry uint64, pri Priority, kind Kind, stackSize, heapSize uint64) (pid uint64, ok bool) {
	return bif.Spawn(s.k, core, entry, pri, kind, stackSize, heapSize)
}

// ActlyExit implements actly_exit(core).
func (s *Scheduler) ActlyExit(core int) bool { return bif.Exit(s.k, core) }

// ActlySend implements actly_send(core, to, msg), delivering msg to the
// process to, costing 5 reductions.
func (s *Scheduler) ActlySend(core int, to *PCB, msg Message) bool {
	return bif.Send(s.k, core, to, msg)
}

// AffinityFromList parses a Linux CPU-list string ("0-5,34,46-48") into
// a CPU set suitable for SetAffinity.
func AffinityFromList(s string) (unix.CPUSet, error) { return affinity.Parse(s) }

// FullAffinity returns a mask with every one of n cores set. (A freshly
// spawned process starts with every bit of the CPU set set, not just n.)
func FullAffinity(n int) unix.CPUSet { return affinity.Full(n) }

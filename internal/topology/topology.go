// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package topology classifies cores into Performance/Efficiency kinds and
// clusters/NUMA nodes, and picks the best core for a process kind: a
// per-kind and per-cluster map of cores, built once and read-only
// thereafter, needing no locking on the read path.
package topology

import (
	"sort"

	"github.com/aclements/actlysched/internal/pcb"
)

// CoreKind is whether a core is a high-performance core or a
// power-efficient one.
type CoreKind uint8

const (
	Unknown CoreKind = iota
	Performance
	Efficiency
)

func (k CoreKind) String() string {
	switch k {
	case Performance:
		return "performance"
	case Efficiency:
		return "efficiency"
	default:
		return "unknown"
	}
}

// Topology is the read-only map from core id to its kind, cluster, and
// NUMA node. Construct with Detect; safe for concurrent reads from any
// core once built.
type Topology struct {
	numCores int
	kind     []CoreKind
	cluster  []int
	numa     []int
	byKind   map[CoreKind][]int
}

// Detect builds a Topology for numCores cores. Cores 0–7 are classified
// Performance and 8+ Efficiency by default; a real embedder may override
// individual entries after Detect returns, e.g. after probing
// /sys/devices/system/cpu on the host.
func Detect(numCores int) *Topology {
	t := &Topology{
		numCores: numCores,
		kind:     make([]CoreKind, numCores),
		cluster:  make([]int, numCores),
		numa:     make([]int, numCores),
		byKind:   make(map[CoreKind][]int),
	}
	for c := 0; c < numCores; c++ {
		k := Performance
		if c >= 8 {
			k = Efficiency
		}
		t.kind[c] = k
		t.cluster[c] = c / 4
		t.numa[c] = c / 8
		t.byKind[k] = append(t.byKind[k], c)
	}
	return t
}

// SetCoreKind overrides the classification of one core, for embedders
// that probed the real host topology.
func (t *Topology) SetCoreKind(core int, kind CoreKind) {
	if core < 0 || core >= t.numCores {
		return
	}
	old := t.kind[core]
	t.kind[core] = kind
	t.byKind[old] = removeCore(t.byKind[old], core)
	t.byKind[kind] = append(t.byKind[kind], core)
	sort.Ints(t.byKind[kind])
}

func removeCore(cores []int, core int) []int {
	for i, c := range cores {
		if c == core {
			return append(cores[:i], cores[i+1:]...)
		}
	}
	return cores
}

// SetCluster and SetNUMANode likewise let an embedder override the
// default linear grouping with a real probe result.
func (t *Topology) SetCluster(core, cluster int) {
	if core >= 0 && core < t.numCores {
		t.cluster[core] = cluster
	}
}

func (t *Topology) SetNUMANode(core, node int) {
	if core >= 0 && core < t.numCores {
		t.numa[core] = node
	}
}

// Kind reports a core's classification, Unknown if out of range.
func (t *Topology) Kind(core int) CoreKind {
	if core < 0 || core >= t.numCores {
		return Unknown
	}
	return t.kind[core]
}

// Cluster reports a core's cluster id.
func (t *Topology) Cluster(core int) int {
	if core < 0 || core >= t.numCores {
		return -1
	}
	return t.cluster[core]
}

// NUMANode reports a core's NUMA node id.
func (t *Topology) NUMANode(core int) int {
	if core < 0 || core >= t.numCores {
		return -1
	}
	return t.numa[core]
}

// CoresOfKind returns the cores classified as kind, in ascending order.
func (t *Topology) CoresOfKind(kind CoreKind) []int {
	return t.byKind[kind]
}

// SameCluster reports whether a and b are in the same cluster.
func (t *Topology) SameCluster(a, b int) bool {
	return t.Cluster(a) == t.Cluster(b) && t.Cluster(a) >= 0
}

// SameNUMANode reports whether a and b share a NUMA node.
func (t *Topology) SameNUMANode(a, b int) bool {
	return t.NUMANode(a) == t.NUMANode(b) && t.NUMANode(a) >= 0
}

// GetOptimalCore picks a starting core for a process of the given kind:
// CPU-bound and mixed workloads prefer a Performance core, I/O-bound
// workloads prefer an Efficiency core. If no core of the preferred kind
// exists it falls back to the lowest Performance core, then the lowest
// Efficiency core; it returns -1 only if neither kind has any core.
func (t *Topology) GetOptimalCore(kind pcb.Kind) int {
	want := Performance
	if kind == pcb.KindIOBound {
		want = Efficiency
	}
	cores := t.byKind[want]
	if len(cores) == 0 {
		cores = t.byKind[Performance]
	}
	if len(cores) == 0 {
		cores = t.byKind[Efficiency]
	}
	if len(cores) == 0 {
		return -1
	}
	return cores[0]
}

// CheckAffinity reports whether core is set in p's affinity mask.
func CheckAffinity(p *pcb.PCB, core int) bool {
	if core < 0 {
		return false
	}
	return p.AffinityMask.IsSet(core)
}

// IsMigrationAllowed is the shared predicate behind is_steal_allowed and
// is_migration_allowed: src and tgt must be distinct and valid, tgt must
// be in p's affinity mask, and p must not have already used up its
// migration budget.
func IsMigrationAllowed(p *pcb.PCB, src, tgt, maxCores int, maxMigrations uint32) bool {
	if p == nil || src == tgt || src < 0 || tgt < 0 || src >= maxCores || tgt >= maxCores {
		return false
	}
	if !CheckAffinity(p, tgt) {
		return false
	}
	return p.MigrationCount < maxMigrations
}

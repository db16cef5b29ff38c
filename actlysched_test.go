// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package actlysched

import (
	"testing"

	"github.com/aclements/actlysched/internal/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestScheduler(t *testing.T, numCores int) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxCores = numCores
	s := NewScheduler(cfg)
	for c := 0; c < numCores; c++ {
		require.NoError(t, s.InitCore(c, 64, 64))
	}
	return s
}

func TestEndToEndSpawnScheduleYieldExit(t *testing.T) {
	s := newTestScheduler(t, 1)

	p, err := s.ProcessCreate(0, 0x1000, Normal, KindMixed, 4096, 1024)
	require.NoError(t, err)
	p.AffinityMask = FullAffinity(16)

	got := s.Schedule(0)
	require.Same(t, p, got)
	assert.Equal(t, uint64(DefaultReductions), s.GetReductions(0))

	ok := s.ActlyExit(0)
	assert.True(t, ok)
	assert.Nil(t, s.GetCurrent(0))
}

func TestBifSpawnAndYieldRoundTrip(t *testing.T) {
	s := newTestScheduler(t, 1)

	pid, ok := s.ActlySpawn(0, 0x1000, Normal, KindMixed, 4096, 1024)
	require.True(t, ok)
	assert.NotZero(t, pid)

	p := s.Schedule(0)
	require.NotNil(t, p)
	assert.Equal(t, pid, p.PID)

	assert.True(t, s.ActlyYield(0))
}

func TestSetGetCheckAffinity(t *testing.T) {
	s := newTestScheduler(t, 2)
	p, err := s.ProcessCreate(0, 0, Normal, KindMixed, 4096, 1024)
	require.NoError(t, err)

	mask, parseErr := AffinityFromList("0")
	require.NoError(t, parseErr)
	require.NoError(t, s.SetAffinity(p, mask))

	assert.True(t, s.CheckAffinity(p, 0))
	assert.False(t, s.CheckAffinity(p, 1))
}

func TestRestrictGrantRevokeAffinity(t *testing.T) {
	s := newTestScheduler(t, 4)
	p, err := s.ProcessCreate(0, 0, Normal, KindMixed, 4096, 1024)
	require.NoError(t, err)
	p.AffinityMask = FullAffinity(4)

	require.NoError(t, s.RestrictAffinity(p, mustAffinity(t, "0-1")))
	assert.Equal(t, []int{0, 1}, AffinityCores(p.AffinityMask))

	require.NoError(t, s.RevokeAffinity(p, mustAffinity(t, "0")))
	assert.Equal(t, []int{1}, AffinityCores(p.AffinityMask))

	err = s.RevokeAffinity(p, mustAffinity(t, "1"))
	assert.ErrorIs(t, err, kernel.ErrAffinityViolation, "revoking the last eligible core must fail")
	assert.Equal(t, []int{1}, AffinityCores(p.AffinityMask), "a failed revoke must not change the mask")

	require.NoError(t, s.GrantAffinity(p, mustAffinity(t, "2-3")))
	assert.Equal(t, []int{1, 2, 3}, AffinityCores(p.AffinityMask))
}

func mustAffinity(t *testing.T, s string) unix.CPUSet {
	t.Helper()
	mask, err := AffinityFromList(s)
	require.NoError(t, err)
	return mask
}

func TestGetOptimalCorePrefersPerformanceForCPUBound(t *testing.T) {
	s := newTestScheduler(t, 4)
	core := s.GetOptimalCore(KindCPUBound)
	assert.GreaterOrEqual(t, core, 0)
	assert.Equal(t, "performance", s.Topology().Kind(core).String())
}

func TestBlockWakeThroughFacade(t *testing.T) {
	s := newTestScheduler(t, 1)
	p, err := s.ProcessCreate(0, 0, Normal, KindMixed, 4096, 1024)
	require.NoError(t, err)
	s.Schedule(0)

	replacement := s.Block(0, p, ReasonReceive)
	assert.Nil(t, replacement)

	assert.True(t, s.Wake(0, p))
	got := s.Schedule(0)
	require.Same(t, p, got)
}

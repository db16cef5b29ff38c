// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package affinity contains helpers for the CPUSet functionality in
// golang.org/x/sys/unix, built around "affinity masks of lightweight
// processes" — the bitset of cores a PCB may be scheduled or migrated
// onto.
package affinity

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Parse constructs a CPU set from a Linux CPU-list-formatted string, e.g.
// "0-5,34,46-48".
//
// See: http://man7.org/linux/man-pages/man7/cpuset.7.html#FORMATS
//
// Code adapted from https://github.com/kubernetes/kubernetes/blob/v1.27.10/pkg/kubelet/cm/cpuset/cpuset.go#L201
//
// Apache License 2.0
func Parse(s string) (unix.CPUSet, error) {
	var set unix.CPUSet

	if s == "" {
		return set, errors.New("cannot parse empty string")
	}

	ranges := strings.Split(s, ",")

	for _, r := range ranges {
		boundaries := strings.SplitN(r, "-", 2)
		if len(boundaries) == 1 {
			elem, err := strconv.Atoi(boundaries[0])
			if err != nil {
				return set, err
			}
			set.Set(elem)
		} else if len(boundaries) == 2 {
			start, err := strconv.Atoi(boundaries[0])
			if err != nil {
				return set, err
			}
			end, err := strconv.Atoi(boundaries[1])
			if err != nil {
				return set, err
			}
			if start > end {
				return set, fmt.Errorf("invalid range %q (%d > %d)", r, start, end)
			}
			for e := start; e <= end; e++ {
				set.Set(e)
			}
		}
	}
	return set, nil
}

// Full returns a mask with every one of n cores set.
func Full(n int) unix.CPUSet {
	var set unix.CPUSet
	for i := 0; i < n; i++ {
		set.Set(i)
	}
	return set
}

// Single returns a mask with only core set.
func Single(core int) unix.CPUSet {
	var set unix.CPUSet
	set.Set(core)
	return set
}

func Intersect(a, b unix.CPUSet) unix.CPUSet {
	var res unix.CPUSet
	for i := range a {
		res[i] = a[i] & b[i]
	}
	return res
}

func Union(a, b unix.CPUSet) unix.CPUSet {
	var res unix.CPUSet
	for i := range a {
		res[i] = a[i] | b[i]
	}
	return res
}

func Difference(a, b unix.CPUSet) unix.CPUSet {
	var res unix.CPUSet
	for i := range a {
		res[i] = a[i] &^ b[i]
	}
	return res
}

// Range calls fn with the index of every CPU available in the set.
func Range(s unix.CPUSet, fn func(int)) {
	count := s.Count()
	for i := 0; count > 0; i++ {
		if s.IsSet(i) {
			fn(i)
			count--
		}
	}
}

var numCPUs = runtime.NumCPU()

const bytesPerChunk = unsafe.Sizeof(unix.CPUSet{}[0])

// String renders s as one hex word per chunk, followed by the
// population count.
func String(s unix.CPUSet) string {
	var sb strings.Builder
	for i := 0; i < len(s) && i*8*int(bytesPerChunk) < numCPUs; i++ {
		fmt.Fprintf(&sb, "%08X ", s[i])
	}
	fmt.Fprintf(&sb, "total: %d", s.Count())
	return sb.String()
}

// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "errors"

// Error kinds recognized by the kernel. Every one of these is recovered
// locally: the kernel never panics on a caller's bad input. Only a
// genuinely unrecoverable internal invariant violation — tested for
// with invariant() below — ever aborts the process.
var (
	ErrInvalidCore            = errors.New("kernel: invalid core id")
	ErrInvalidPCB             = errors.New("kernel: invalid or freed pcb")
	ErrInvalidPriority        = errors.New("kernel: invalid priority")
	ErrInvalidSize            = errors.New("kernel: stack or heap below minimum")
	ErrExhausted              = errors.New("kernel: pool or deque exhausted")
	ErrAffinityViolation      = errors.New("kernel: target core not in affinity mask")
	ErrMigrationCapReached    = errors.New("kernel: migration cap reached")
	ErrInsufficientReductions = errors.New("kernel: bif cost exceeds current reductions")
	ErrTimeout                = errors.New("kernel: blocking timeout exceeds MAX_BLOCKING_TIME")
)

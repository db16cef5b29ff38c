// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry wraps zap for the scheduler's structured logging and
// exposes per-core counter snapshots for the admin protocol. It is
// ambient: nothing in internal/kernel depends on it, an embedder wires
// it in at the edges (cmd/actlysched, internal/admin).
package telemetry

import (
	"github.com/aclements/actlysched/internal/corestate"
	"go.uber.org/zap"
)

// Logger wraps a *zap.Logger, adding a WithCore helper that tags every
// subsequent log line with the emitting core's id.
type Logger struct {
	base *zap.Logger
}

// New wraps an existing zap logger. Pass zap.NewProduction() or
// zap.NewDevelopment() from the embedder; the scheduler itself never
// decides log encoding or output sinks.
func New(base *zap.Logger) *Logger {
	return &Logger{base: base}
}

// WithCore returns a logger tagged with core as a structured field.
func (l *Logger) WithCore(core int) *zap.Logger {
	return l.base.With(zap.Int("core", core))
}

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// CoreSnapshot is a point-in-time read of one core's counters, returned
// by the admin protocol's stats query.
type CoreSnapshot struct {
	Core       int
	Scheduled  uint64
	Yields     uint64
	Migrations uint64
	Steals     uint64
	Preempts   uint64
}

// Snapshot reads st's counters without resetting them.
func Snapshot(core int, st *corestate.State) CoreSnapshot {
	return CoreSnapshot{
		Core:       core,
		Scheduled:  st.Counters.Scheduled.Load(),
		Yields:     st.Counters.Yields.Load(),
		Migrations: st.Counters.Migrations.Load(),
		Steals:     st.Counters.Steals.Load(),
		Preempts:   st.Counters.Preempts.Load(),
	}
}

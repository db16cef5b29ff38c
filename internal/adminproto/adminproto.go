// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adminproto defines the gob-encoded request/response types
// exchanged over the admin Unix socket (internal/admin): one wrapper
// struct carrying an interface{} action, registered with gob.Register so
// the decoder can recover the concrete type on the wire.
package adminproto

import "encoding/gob"

// Request wraps whichever Action the client is sending.
type Request struct {
	Action interface{}
}

// ActionStats asks for a CoreSnapshot of every initialized core.
type ActionStats struct{}

// ActionQueueLens asks for the ready-queue lengths, by priority, of one
// core.
type ActionQueueLens struct {
	Core int
}

// StatsResponse answers ActionStats: one entry per initialized core.
type StatsResponse struct {
	Cores []CoreStats
}

// CoreStats is the wire shape of telemetry.CoreSnapshot — adminproto
// does not import internal/telemetry to keep the wire format decoupled
// from that package's internal layout.
type CoreStats struct {
	Core       int
	Scheduled  uint64
	Yields     uint64
	Migrations uint64
	Steals     uint64
	Preempts   uint64
}

// QueueLensResponse answers ActionQueueLens: one length per priority,
// indexed Max, High, Normal, Low.
type QueueLensResponse struct {
	Lens [4]int
	Err  string
}

func init() {
	gob.Register(ActionStats{})
	gob.Register(ActionQueueLens{})
}

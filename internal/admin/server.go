// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package admin is the scheduler's introspection protocol: a Unix
// domain socket server, peer-credential authenticated, answering
// queries about per-core stats and ready-queue depths. It sits outside
// the scheduler's core operation set — an embedder may omit it
// entirely. Built on net.Listen("unix", ...), encoding/gob, and
// inet.af/peercred.
package admin

import (
	"encoding/gob"
	"io"
	"net"
	"os"
	"os/user"
	"runtime"

	"github.com/aclements/actlysched/internal/adminproto"
	"github.com/aclements/actlysched/internal/kernel"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/telemetry"
	"go.uber.org/zap"
	"inet.af/peercred"
)

// Server answers admin queries against one Kernel.
type Server struct {
	k   *kernel.Kernel
	log *zap.Logger
}

// NewServer builds a Server reading from k, logging with log.
func NewServer(k *kernel.Kernel, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{k: k, log: log}
}

// Listen serves admin connections on path until the listener is closed
// or the process exits. Mirrors doDaemon's abstract-socket handling.
func (s *Server) Listen(path string) error {
	isAbstract := runtime.GOOS == "linux" && len(path) > 1 && path[0] == '@'
	if !isAbstract {
		os.Remove(path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	defer l.Close()
	if !isAbstract {
		if err := os.Chmod(path, 0777); err != nil {
			return err
		}
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(c net.Conn) {
	defer c.Close()

	cred, err := peercred.Get(c)
	if err != nil {
		s.log.Error("admin: reading peer credentials", zap.Error(err))
		return
	}
	userName := "???"
	if uid, ok := cred.UserID(); ok {
		if u, err := user.LookupId(uid); err == nil {
			userName = u.Username
		}
	}
	s.log.Info("admin: connection", zap.String("user", userName))

	dec := gob.NewDecoder(c)
	enc := gob.NewEncoder(c)
	for {
		var req adminproto.Request
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF {
				s.log.Error("admin: decode", zap.Error(err))
			}
			return
		}
		resp := s.handle(req)
		if err := enc.Encode(resp); err != nil {
			s.log.Error("admin: encode response", zap.Error(err))
			return
		}
	}
}

func (s *Server) handle(req adminproto.Request) interface{} {
	switch action := req.Action.(type) {
	case adminproto.ActionStats:
		var resp adminproto.StatsResponse
		for c := 0; c < s.k.NumCores(); c++ {
			st, err := s.k.CoreState(c)
			if err != nil {
				continue
			}
			snap := telemetry.Snapshot(c, st)
			resp.Cores = append(resp.Cores, adminproto.CoreStats{
				Core:       snap.Core,
				Scheduled:  snap.Scheduled,
				Yields:     snap.Yields,
				Migrations: snap.Migrations,
				Steals:     snap.Steals,
				Preempts:   snap.Preempts,
			})
		}
		return resp

	case adminproto.ActionQueueLens:
		st, err := s.k.CoreState(action.Core)
		if err != nil {
			return adminproto.QueueLensResponse{Err: err.Error()}
		}
		var lens [4]int
		for pri := pcb.Max; pri < pcb.NumPriorities; pri++ {
			lens[pri] = st.QueueLen(pri)
		}
		return adminproto.QueueLensResponse{Lens: lens}

	default:
		return adminproto.QueueLensResponse{Err: "unknown action"}
	}
}

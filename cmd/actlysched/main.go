// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command actlysched runs a small demo scheduler harness: it spins up
// one goroutine per core, each driving its own tick loop over a
// actlysched.Scheduler, and optionally serves the admin introspection
// protocol over a Unix socket.
//
//	actlysched -cores 4 -procs 16
//	actlysched -admin -socket /var/run/actlysched.socket
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/aclements/actlysched"
	"github.com/aclements/actlysched/internal/admin"
	"github.com/aclements/actlysched/internal/config"
	"github.com/aclements/actlysched/internal/pcb"
	"github.com/aclements/actlysched/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var gVerbose = false

// vlog logs if gVerbose is true.
func vlog(log *zap.Logger, format string, a ...interface{}) {
	if gVerbose {
		log.Sugar().Infof(format, a...)
	}
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flagCores := flag.Int("cores", 4, "number of scheduler cores to run")
	flagProcs := flag.Int("procs", 16, "number of demo processes to spawn on core 0")
	flagTick := flag.Duration("tick", 10*time.Millisecond, "timer tick period")
	flagAdmin := flag.Bool("admin", false, "serve the admin introspection protocol")
	flagSocket := flag.String("socket", "/var/run/actlysched.socket", "admin socket `path`")
	flagVerbose := flag.Bool("verbose", false, "be verbose")
	flag.Parse()
	gVerbose = *flagVerbose

	zlog, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zlog.Sync()
	log := telemetry.New(zlog)

	cfg := config.Default()
	cfg.MaxCores = *flagCores
	s := actlysched.NewScheduler(cfg)
	for c := 0; c < *flagCores; c++ {
		if err := s.InitCore(c, 1024, 256); err != nil {
			zlog.Fatal("init core", zap.Int("core", c), zap.Error(err))
		}
	}

	for i := 0; i < *flagProcs; i++ {
		pri := pcb.Normal
		if i%8 == 0 {
			pri = pcb.High
		}
		if _, err := s.ProcessCreate(0, uint64(i), pri, pcb.KindMixed, config.MinStackSize, config.MinHeapSize); err != nil {
			zlog.Warn("process_create", zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var eg errgroup.Group
	for c := 0; c < *flagCores; c++ {
		core := c
		eg.Go(func() error {
			return runCore(ctx, s, core, *flagTick, log.WithCore(core))
		})
	}

	if *flagAdmin {
		srv := admin.NewServer(s.Kernel(), zlog)
		eg.Go(func() error {
			return srv.Listen(*flagSocket)
		})
	}

	vlog(zlog, "actlysched running with %d cores\n", *flagCores)

	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		zlog.Error("exited", zap.Error(err))
		os.Exit(1)
	}
}

// runCore drives one core's dispatch loop: schedule, run a bounded
// number of reductions (simulated — this demo harness has no real
// bytecode interpreter), preempt or yield, and check timer wakeups once
// per tick. It exits when ctx is cancelled.
func runCore(ctx context.Context, s *actlysched.Scheduler, core int, tick time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var now uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now++
			s.Tick(core, now)
			if woke := s.CheckTimerWakeups(core); woke > 0 {
				log.Debug("timer wakeups", zap.Int("count", woke))
			}
		default:
		}

		p := s.Schedule(core)
		if p == nil {
			if stolen := s.Idle(core); stolen == nil {
				time.Sleep(time.Millisecond)
			}
			continue
		}

		for i := 0; i < 50 && s.GetReductions(core) > 0; i++ {
			if s.DecrementReductions(core) {
				break
			}
		}
		if s.GetReductions(core) == 0 {
			s.Preempt(core, p)
			continue
		}
		s.Yield(core, p)
	}
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shim provides the interposition surface a host program calls in
// place of its real allocator and parallel-runtime dispatch. Go has no
// portable equivalent of LD_PRELOAD/dlsym symbol interposition, so these are
// exported hook functions rather than interposed symbols: a host program
// (or a thin cgo/assembly trampoline wired to its actual allocator and
// dispatch symbols) calls them directly.
package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/loadshift/graybox/config"
	"github.com/loadshift/graybox/counters"
	"github.com/loadshift/graybox/energy"
	"github.com/loadshift/graybox/extractor"
	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/pipeline"
	"github.com/loadshift/graybox/predictor"
	"github.com/loadshift/graybox/registry"
	"github.com/loadshift/graybox/sampler"
)

// Shim owns every live resource graybox needs for the life of the host
// process: the allocation registry, the measurement/prediction pipeline,
// the background sampler, and the cached thread count the extractor reads.
type Shim struct {
	reg      *registry.Registry
	pipeline *pipeline.Pipeline
	sampler  *sampler.Sampler
	hw       counters.Handle
	en       energy.Counter

	threadMu  sync.Mutex // thread_num_mtx
	threadNum int
}

// Start assembles and starts a Shim from the process environment: it opens
// the hardware counter group and energy counter for the current process,
// promotes the allocation registry out of its bootstrap phase, creates the
// pipeline and sampler output streams, and starts the sampler goroutine.
//
// Start should be called once, after every other package-level initializer
// in the host program has run (mirroring the original's init_priority(101)
// ordering, which ran graybox's own constructors last).
func Start(reg *registry.Registry) (*Shim, error) {
	cfg := config.Load()
	log := obslog.Get()

	reg.Promote()

	pid := os.Getpid()
	hw := counters.Open(pid, counters.HWEvents[:])
	if hw == nil {
		return nil, fmt.Errorf("shim: failed to open any hardware counter")
	}
	en := energy.Open()

	s := &Shim{reg: reg, hw: hw, en: en, threadNum: 1}

	source := &pipeline.CounterSource{Mu: &sync.Mutex{}, Counters: hw, Energy: en}
	ex := extractor.New(reg)
	kind := predictor.ParseKind(cfg.Predictor)
	factory := predictor.NewFactory(kind, cfg.ExternalPredictorCmd)

	p, err := pipeline.New(cfg.OutputDir, factory, source, ex, s.ThreadCount)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("shim: creating pipeline: %w", err)
	}
	s.pipeline = p

	samp, err := sampler.Open(cfg.OutputDir, source)
	if err != nil {
		p.Close()
		hw.Close()
		return nil, fmt.Errorf("shim: creating sampler: %w", err)
	}
	s.sampler = samp
	go samp.Run()

	log.Info("graybox started", "predictor", kind.String(), "output_dir", filepath.Clean(cfg.OutputDir))
	return s, nil
}

// Stop stops the sampler and flushes and closes every output stream and
// counter handle. It does not stop the registry, which outlives the shim
// for the life of the process.
func (s *Shim) Stop() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(s.sampler.Stop())
	record(s.pipeline.Close())
	s.hw.Close()
	s.en.Close()
	return firstErr
}

// Malloc records (address, size) for the allocation alloc just performed
// and returns alloc's result unchanged. Call it in place of the host's
// allocator; it never fails or alters the allocation.
func (s *Shim) Malloc(size uintptr, alloc func(uintptr) unsafe.Pointer) unsafe.Pointer {
	p := alloc(size)
	if p != nil {
		s.reg.Register(uintptr(p), size)
	}
	return p
}

// ParallelRegion wraps one parallel-region dispatch with graybox's
// predict/measure/fit cycle. fn identifies the region; payload is the
// opaque struct carrying its captured variables; real performs the actual
// dispatch, forwarding n_threads and flags as the host's runtime expects.
func (s *Shim) ParallelRegion(fn any, payload unsafe.Pointer, real func()) {
	s.pipeline.Dispatch(fn, payload, real)
}

// GetNumThreads calls real (the host's omp_get_num_threads or equivalent),
// caches its result for the extractor, and returns it unchanged.
func (s *Shim) GetNumThreads(real func() int) int {
	n := real()
	s.setThreadCount(n)
	return n
}

// SetNumThreads calls real(n) (the host's omp_set_num_threads or
// equivalent), then caches n for the extractor.
func (s *Shim) SetNumThreads(n int, real func(int)) {
	real(n)
	s.setThreadCount(n)
}

// ThreadCount returns the most recently cached thread count, defaulting to
// 1 if neither hook has fired yet.
func (s *Shim) ThreadCount() int {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	return s.threadNum
}

func (s *Shim) setThreadCount(n int) {
	s.threadMu.Lock()
	s.threadNum = n
	s.threadMu.Unlock()
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sampler runs the background thread that records system-wide
// counter deltas at a fixed cadence, independent of the pipeline's own
// per-region delta accounting over the same underlying counters.
package sampler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/pipeline"
)

// Interval is the fixed sampling cadence.
const Interval = 50 * time.Millisecond

// Sampler periodically reads the shared counter source and appends one
// delta line to monitoring.csv, until Stop is called.
type Sampler struct {
	source *pipeline.CounterSource
	file   *os.File
	out    *bufio.Writer

	last    map[events.Kind]uint64
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool // set once Run begins; Stop only waits on done then
}

// Open creates monitoring.csv under dir and returns a Sampler ready to run.
func Open(dir string, source *pipeline.CounterSource) (*Sampler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sampler: creating output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "monitoring.csv"))
	if err != nil {
		return nil, fmt.Errorf("sampler: creating monitoring.csv: %w", err)
	}

	out := bufio.NewWriter(f)
	if _, err := out.WriteString(events.Header + "\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("sampler: writing monitoring.csv header: %w", err)
	}
	if err := out.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sampler: flushing monitoring.csv header: %w", err)
	}

	return &Sampler{
		source: source,
		file:   f,
		out:    out,
		last:   make(map[events.Kind]uint64, len(events.Order)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Run loops on Interval until Stop is called, appending one delta record
// per tick. It returns once the loop has observed the stop signal, so
// callers can run it in its own goroutine and wait on its return (or just
// fire-and-forget: Stop blocks until Run has exited).
func (s *Sampler) Run() {
	s.started.Store(true)
	defer close(s.done)

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	current := s.source.Snapshot()

	for _, ev := range events.Order {
		delta := current[ev] - s.last[ev]
		if _, err := fmt.Fprintf(s.out, "%d,", delta); err != nil {
			obslog.Get().Warn("sampler: failed to write monitoring record", "err", err)
			return
		}
	}
	if _, err := s.out.WriteString("\n"); err != nil {
		obslog.Get().Warn("sampler: failed to write monitoring record", "err", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		obslog.Get().Warn("sampler: failed to flush monitoring.csv", "err", err)
	}

	s.last = current
}

// Stop signals Run to exit and, if Run has started, waits for it to do so,
// then flushes and closes monitoring.csv. It may be called without Run ever
// having been started.
func (s *Sampler) Stop() error {
	close(s.stop)
	if s.started.Load() {
		<-s.done
	}
	s.out.Flush()
	return s.file.Close()
}

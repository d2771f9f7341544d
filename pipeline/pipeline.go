// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline wraps each intercepted parallel-region dispatch with a
// predict-then-measure-then-fit cycle: predict the upcoming counter deltas,
// snapshot counters, run the real dispatch, snapshot again, and feed the
// observed deltas back into the region's predictors.
package pipeline

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/loadshift/graybox/counters"
	"github.com/loadshift/graybox/energy"
	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/extractor"
	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/predictor"
)

// CounterSource is the shared counter_mtx-guarded view the pipeline and the
// background sampler both read through: a grouped hardware counter handle
// plus the energy counter, snapshotted together.
type CounterSource struct {
	Mu       *sync.Mutex
	Counters counters.Handle
	Energy   energy.Counter
}

// Snapshot reads every tracked event under s.Mu and returns them keyed by
// events.Kind. Both the pipeline and the background sampler call this; each
// keeps its own previous reading, so their deltas are independent
// accountings of the same underlying counter stream.
func (s *CounterSource) Snapshot() map[events.Kind]uint64 {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	out := make(map[events.Kind]uint64, len(events.Order))
	var hw counters.Snapshot
	if s.Counters != nil {
		hw = s.Counters.Read()
	}
	for _, ev := range events.Order {
		if ev == events.Energy {
			if s.Energy != nil {
				out[ev] = s.Energy.Read()
			}
			continue
		}
		out[ev] = hw[ev.String()]
	}
	return out
}

// Pipeline drives the predict/measure/fit cycle for every region a host
// program dispatches through it.
type Pipeline struct {
	source      *CounterSource
	extractor   *extractor.Extractor
	predictors  *predictor.Registry
	out         *outputs
	threadCount func() int // last thread count observed via the get/set hooks

	mu       sync.Mutex
	regionID map[uintptr]uint64 // function identity -> region id
	nextID   uint64
}

// New returns a Pipeline writing its CSV outputs under outputDir, driving
// predictors created by factory, reading counters through source, and
// extracting features through ex. threadCount returns the most recently
// observed thread count (from the omp_get/set_num_threads hooks), which is
// deliberately independent of any single region's own n_threads argument.
func New(outputDir string, factory *predictor.Factory, source *CounterSource, ex *extractor.Extractor, threadCount func() int) (*Pipeline, error) {
	out, err := newOutputs(outputDir)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		source:      source,
		extractor:   ex,
		predictors:  predictor.NewRegistry(factory),
		out:         out,
		threadCount: threadCount,
		regionID:    make(map[uintptr]uint64),
	}, nil
}

// regionKey returns a stable identity for a region's work function: the
// underlying code pointer, since Go func values are not comparable (and so
// cannot be map keys) except against nil.
func regionKey(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Dispatch wraps one parallel-region call. fn identifies the region (by
// code pointer); payload is the opaque argument struct the extractor scans;
// real performs the actual dispatch and is invoked exactly once, even when a
// counter read or an output write fails. A panic from a predictor (the
// external backend panics on any fault) is not recovered and propagates out
// of Dispatch.
func (p *Pipeline) Dispatch(fn any, payload unsafe.Pointer, real func()) {
	id, preds := p.regionFor(fn)
	log := obslog.Get()

	features := p.extractor.Extract(payload, p.threadCount())

	if err := p.out.writePrediction(id, preds, features[:]); err != nil {
		log.Warn("failed to write prediction record", "region", id, "err", err)
	}
	if err := p.out.writeProgress(id, features); err != nil {
		log.Warn("failed to write progress record", "region", id, "err", err)
	}

	before := p.source.Snapshot()
	real()
	after := p.source.Snapshot()

	if err := p.out.writeMeasurement(id, preds, features[:], before, after); err != nil {
		log.Warn("failed to write measurement record", "region", id, "err", err)
	}
}

// regionFor returns the region id and predictors for fn, assigning the
// next consecutive id and creating output streams on first sighting.
func (p *Pipeline) regionFor(fn any) (uint64, [3]predictor.Predictor) {
	key := regionKey(fn)

	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.regionID[key]
	if !ok {
		p.nextID++
		id = p.nextID
		p.regionID[key] = id

		if err := p.out.createRegionStreams(id); err != nil {
			obslog.Get().Error("failed to create region output streams", "region", id, "err", fmt.Sprint(err))
		}
	}

	return id, p.predictors.For(id)
}

// Close flushes and closes every open output stream.
func (p *Pipeline) Close() error {
	return p.out.close()
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package counters opens, reads and closes grouped Linux hardware
// performance counters for a process, presenting one uniform interface
// whether the host has a single generic CPU PMU or several heterogeneous
// ones.
package counters

import (
	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/internal/obslog"
)

// HWEvents is the fixed set of hardware counters graybox groups and opens
// together.
var HWEvents = [...]events.Kind{events.Instructions, events.CacheMisses}

// Snapshot maps an event name to its current counter value.
type Snapshot map[string]uint64

// Handle is a live, grouped set of hardware performance counters for one
// process. It is safe to share a Handle between goroutines; callers
// serialize access themselves (graybox does this with one counter mutex
// shared between the pipeline and the background sampler).
type Handle interface {
	// Read performs one grouped read and returns the current value of
	// every successfully opened counter. Counters that failed to open
	// are absent from the returned Snapshot, so looking them up yields 0.
	Read() Snapshot

	// Close disables and closes every owned descriptor.
	Close()
}

// Open opens a counter group for pid, one counter per event in events, and
// enables the whole group. It returns nil if not a single counter could be
// opened.
func Open(pid int, evs []events.Kind) Handle {
	topo := detectTopology()
	log := obslog.Get()

	if topo.single {
		h := openSingle(pid, evs)
		if h == nil {
			log.Error("failed to open any hardware counter", "pid", pid)
		}
		return h
	}

	h := openMulti(pid, evs, topo.pmus)
	if h == nil {
		log.Error("failed to open any hardware counter on any PMU", "pid", pid)
	}
	return h
}

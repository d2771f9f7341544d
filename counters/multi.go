// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counters

import (
	"golang.org/x/sys/unix"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/internal/obslog"
)

// pmuGroup is one per-PMU perf_event group: its own leader fd and its own
// id→event-name map, since the same event name can carry a distinct kernel
// id on each heterogeneous PMU.
type pmuGroup struct {
	name     string
	leaderFD int
	fds      []int // every open descriptor of this group, leader included
	idToName map[uint64]string
}

// multiHandle is the Handle implementation for heterogeneous-PMU hosts
// (e.g. big.LITTLE). Each PMU gets its own perf_event group, opened against
// PERF_TYPE_HARDWARE with the PMU's sysfs type OR-ed into the high 32 bits
// of config — the constant-type, high-bits-carry-the-PMU encoding the
// original shim's MultiPMU path uses, not a per-PMU perf_event_attr.type.
type multiHandle struct {
	groups []*pmuGroup
	last   Snapshot
}

// openMulti opens one group of hardware counters per PMU in pmus, for every
// event in evs, and starts every group. It returns nil if not a single
// counter could be opened on any PMU.
func openMulti(pid int, evs []events.Kind, pmus []pmu) Handle {
	log := obslog.Get()

	h := &multiHandle{last: make(Snapshot)}
	for _, p := range pmus {
		g := &pmuGroup{name: p.name, leaderFD: -1, idToName: make(map[uint64]string)}

		for _, ev := range evs {
			config, ok := hwEventConfig[ev]
			if !ok {
				log.Warn("no hardware config for event", "event", ev.String())
				continue
			}
			// PERF_TYPE_HARDWARE stays constant; the PMU's type rides in
			// the high 32 bits of config, matching the original's
			// MultiPMU encoding.
			pmuConfig := config | (p.typ << 32)

			fd, id, err := openGroupedCounter(unix.PERF_TYPE_HARDWARE, pmuConfig, pid, g.leaderFD)
			if err != nil {
				log.Warn("failed to open hardware counter", "pmu", p.name, "event", ev.String(), "err", err)
				continue
			}
			if g.leaderFD == -1 {
				g.leaderFD = fd
			}
			g.fds = append(g.fds, fd)
			g.idToName[id] = ev.String()
		}

		if g.leaderFD == -1 {
			continue
		}
		if err := startGroup(g.leaderFD); err != nil {
			log.Warn("failed to enable counter group", "pmu", p.name, "err", err)
			for _, fd := range g.fds {
				unix.Close(fd)
			}
			continue
		}
		h.groups = append(h.groups, g)
	}

	if len(h.groups) == 0 {
		return nil
	}
	return h
}

func (h *multiHandle) Read() Snapshot {
	out := make(Snapshot, len(h.last))
	ok := false
	for _, g := range h.groups {
		raw, err := readGroup(g.leaderFD)
		if err != nil {
			obslog.Get().Warn("counter group read failed", "pmu", g.name, "err", err)
			continue
		}
		ok = true
		for id, name := range g.idToName {
			out[name] += raw[id]
		}
	}
	if !ok {
		return h.last
	}
	h.last = out
	return out
}

func (h *multiHandle) Close() {
	for _, g := range h.groups {
		stopGroup(g.leaderFD)
		for _, fd := range g.fds {
			unix.Close(fd)
		}
	}
	h.groups = nil
}

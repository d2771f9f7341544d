// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counters

import (
	"golang.org/x/sys/unix"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/internal/obslog"
)

// singleHandle is the Handle implementation for hosts with one generic CPU
// PMU, the common case. Every requested event is opened against
// PERF_TYPE_HARDWARE with no per-PMU type bits, grouped under the first
// successfully opened counter.
type singleHandle struct {
	leaderFD int
	fds      []int // every open descriptor, leader included
	idToName map[uint64]string
	last     Snapshot
}

// openSingle opens one PERF_TYPE_HARDWARE counter per event in evs, grouped
// under the first successfully opened counter, and starts the group. It
// returns nil if not a single counter could be opened.
func openSingle(pid int, evs []events.Kind) Handle {
	log := obslog.Get()

	h := &singleHandle{leaderFD: -1, idToName: make(map[uint64]string), last: make(Snapshot)}
	for _, ev := range evs {
		config, ok := hwEventConfig[ev]
		if !ok {
			log.Warn("no hardware config for event", "event", ev.String())
			continue
		}

		fd, id, err := openGroupedCounter(unix.PERF_TYPE_HARDWARE, config, pid, h.leaderFD)
		if err != nil {
			log.Warn("failed to open hardware counter", "event", ev.String(), "err", err)
			continue
		}
		if h.leaderFD == -1 {
			h.leaderFD = fd
		}
		h.fds = append(h.fds, fd)
		h.idToName[id] = ev.String()
	}

	if h.leaderFD == -1 {
		return nil
	}
	if err := startGroup(h.leaderFD); err != nil {
		log.Error("failed to enable counter group", "err", err)
		for _, fd := range h.fds {
			unix.Close(fd)
		}
		return nil
	}
	return h
}

func (h *singleHandle) Read() Snapshot {
	raw, err := readGroup(h.leaderFD)
	if err != nil {
		obslog.Get().Warn("counter group read failed, reusing last snapshot", "err", err)
		return h.last
	}

	out := make(Snapshot, len(h.idToName))
	for id, name := range h.idToName {
		out[name] = raw[id]
	}
	h.last = out
	return out
}

func (h *singleHandle) Close() {
	if h.leaderFD == -1 {
		return
	}
	stopGroup(h.leaderFD)
	for _, fd := range h.fds {
		unix.Close(fd)
	}
	h.fds = nil
	h.leaderFD = -1
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package energy reads package RAPL energy, preferring the kernel's "power"
// perf PMU and falling back to the powercap sysfs tree when that PMU is
// unavailable.
package energy

import (
	"github.com/loadshift/graybox/internal/obslog"
)

// Counter reads cumulative package energy in microjoules. Read is safe to
// call repeatedly; a failed open makes every Read return 0 rather than
// propagating an error, matching the shim's never-fail-the-host-region
// contract.
type Counter interface {
	// Read returns the current cumulative energy reading in microjoules.
	Read() uint64
	Close()
}

// Open tries the perf-based RAPL source first and falls back to the
// powercap sysfs source. It returns a Counter that always reports 0 if
// neither source is usable.
func Open() Counter {
	log := obslog.Get()

	if c := openPerf(); c != nil {
		return c
	}
	log.Warn("power PMU unavailable, falling back to powercap sysfs")

	if c := openPowercap(); c != nil {
		return c
	}
	log.Error("no energy source available, energy will read 0")
	return noopCounter{}
}

type noopCounter struct{}

func (noopCounter) Read() uint64 { return 0 }
func (noopCounter) Close()       {}

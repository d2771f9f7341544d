// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package energy

import (
	"path/filepath"
	"sync"

	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/internal/sysfs"
)

// Overridable in tests; production code never reassigns this.
var powercapDir = "/sys/devices/virtual/powercap/intel-rapl/intel-rapl:0"

// powercapCounter reads energy_uj directly. The underlying sysfs counter
// wraps at maxRange; Read accumulates a monotone running total by detecting
// current < last and adding the distance to the wrap plus the new reading.
type powercapCounter struct {
	mu       sync.Mutex
	maxRange uint64
	last     uint64
	total    uint64
}

func openPowercap() Counter {
	log := obslog.Get()

	maxRange, err := sysfs.ReadUint(filepath.Join(powercapDir, "max_energy_range_uj"))
	if err != nil {
		log.Warn("powercap max_energy_range_uj unreadable", "err", err)
		return nil
	}
	initial, err := sysfs.ReadUint(filepath.Join(powercapDir, "energy_uj"))
	if err != nil {
		log.Warn("powercap energy_uj unreadable", "err", err)
		return nil
	}

	return &powercapCounter{maxRange: maxRange, last: initial, total: initial}
}

func (c *powercapCounter) Read() uint64 {
	current, err := sysfs.ReadUint(filepath.Join(powercapDir, "energy_uj"))
	if err != nil {
		obslog.Get().Warn("powercap energy_uj read failed", "err", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.total
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if current < c.last {
		c.total += (c.maxRange - c.last) + current
	} else {
		c.total += current - c.last
	}
	c.last = current
	return c.total
}

func (c *powercapCounter) Close() {}

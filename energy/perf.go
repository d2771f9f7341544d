// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package energy

import (
	"encoding/binary"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/internal/sysfs"
)

// Overridable in tests; production code never reassigns this.
var powerPMUDir = "/sys/bus/event_source/devices/power"

// perfCounter reads package energy from the kernel's "power" perf PMU
// (energy-pkg event). Unlike the hardware counter groups, this counter sets
// exclude_kernel=0: energy is a package-level quantity, not attributable to
// a single thread's userspace execution, so excluding kernel time would
// simply drop real energy out of the reading. This asymmetry with the
// hardware counters is intentional.
type perfCounter struct {
	fd    int
	scale float64
	last  uint64 // last successful reading, returned when a read fails
}

func openPerf() Counter {
	log := obslog.Get()

	typ, err := sysfs.ReadUint(filepath.Join(powerPMUDir, "type"))
	if err != nil {
		log.Warn("power PMU type unreadable", "err", err)
		return nil
	}
	config, err := sysfs.ReadEventConfig(filepath.Join(powerPMUDir, "events", "energy-pkg"))
	if err != nil {
		log.Warn("energy-pkg event unreadable", "err", err)
		return nil
	}
	scale, err := sysfs.ReadScale(filepath.Join(powerPMUDir, "events", "energy-pkg.scale"))
	if err != nil {
		log.Warn("energy-pkg scale unreadable", "err", err)
		return nil
	}

	attr := unix.PerfEventAttr{
		Type:   uint32(typ),
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config: config,
		Bits:   unix.PerfBitDisabled,
	}
	fd, err := unix.PerfEventOpen(&attr, -1, 0, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		log.Warn("failed to open energy-pkg counter", "err", err)
		return nil
	}

	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		log.Warn("failed to reset energy counter", "err", err)
		unix.Close(fd)
		return nil
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		log.Warn("failed to enable energy counter", "err", err)
		unix.Close(fd)
		return nil
	}

	return &perfCounter{fd: fd, scale: scale}
}

func (c *perfCounter) Read() uint64 {
	var buf [8]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil || n < 8 {
		obslog.Get().Warn("energy counter read failed, reusing last reading", "err", err)
		return c.last
	}
	raw := binary.NativeEndian.Uint64(buf[:])
	c.last = uint64(float64(raw) * c.scale * 1e6)
	return c.last
}

func (c *perfCounter) Close() {
	unix.Close(c.fd)
}

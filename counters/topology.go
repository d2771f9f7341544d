// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counters

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/internal/sysfs"
)

// Overridable in tests; production code never reassigns these.
var (
	sysfsSingleCPUDir = "/sys/devices/cpu"
	sysfsDevicesDir   = "/sys/devices"
)

// pmu describes one CPU performance-monitoring unit as seen in
// /sys/devices: its directory name and its kernel-assigned numeric type.
type pmu struct {
	name string
	typ  uint64
}

// topology is either a single generic PMU or a set of heterogeneous PMUs
// (e.g. big.LITTLE), exactly as detected by detectTopology.
type topology struct {
	single bool
	pmus   []pmu // for single, len(pmus) == 1 and its type is unused
}

// detectTopology inspects the kernel-exposed device tree to decide whether
// the host has a single generic CPU PMU or multiple heterogeneous ones. If
// a single generic /sys/devices/cpu entry exists, the system is treated as
// single-PMU; otherwise every /sys/devices entry whose name begins with
// "cpu" is collected as one PMU.
func detectTopology() topology {
	if _, err := os.Stat(sysfsSingleCPUDir); err == nil {
		return topology{single: true, pmus: []pmu{{name: "cpu"}}}
	}

	var pmus []pmu
	for _, name := range sysfs.ListDir(sysfsDevicesDir) {
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		typ, err := sysfs.ReadUint(filepath.Join(sysfsDevicesDir, name, "type"))
		if err != nil {
			obslog.Get().Warn("failed to read PMU type", "pmu", name, "err", err)
			continue
		}
		pmus = append(pmus, pmu{name: name, typ: typ})
	}
	return topology{single: false, pmus: pmus}
}

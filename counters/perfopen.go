// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counters

import (
	"encoding/binary"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/internal/obslog"
)

// hwEventConfig maps an events.Kind to its PERF_TYPE_HARDWARE config value.
var hwEventConfig = map[events.Kind]uint64{
	events.Instructions: unix.PERF_COUNT_HW_INSTRUCTIONS,
	events.CacheMisses:  unix.PERF_COUNT_HW_CACHE_MISSES,
}

// openGroupedCounter opens one perf_event counter for pid with the given
// raw config, joining the group led by groupFD (-1 to become the leader
// itself). It configures the counter to exclude kernel/hypervisor
// execution, inherit across the traced process's child threads, and read
// back as part of a PERF_FORMAT_GROUP|PERF_FORMAT_ID group. On success it
// returns the open file descriptor and the kernel-assigned counter id.
func openGroupedCounter(typ uint32, config uint64, pid int, groupFD int) (fd int, id uint64, err error) {
	attr := unix.PerfEventAttr{
		Type:        typ,
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      config,
		Read_format: unix.PERF_FORMAT_GROUP | unix.PERF_FORMAT_ID,
		Bits:        unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv | unix.PerfBitInherit,
	}

	fd, err = unix.PerfEventOpen(&attr, pid, -1, groupFD, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return -1, 0, err
	}

	rawID, err := unix.IoctlGetInt(fd, unix.PERF_EVENT_IOC_ID)
	if err != nil {
		unix.Close(fd)
		return -1, 0, err
	}
	return fd, uint64(rawID), nil
}

// startGroup resets and enables every counter in the group led by fd.
func startGroup(fd int) error {
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, unix.PERF_IOC_FLAG_GROUP); err != nil {
		return err
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, unix.PERF_IOC_FLAG_GROUP); err != nil {
		return err
	}
	return nil
}

// stopGroup disables every counter in the group led by fd.
func stopGroup(fd int) {
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, unix.PERF_IOC_FLAG_GROUP); err != nil {
		obslog.Get().Warn("failed to disable counter group", "fd", fd, "err", err)
	}
}

// readGroup performs one grouped read of the leader fd and returns the raw
// id→value pairs the kernel reported. A read failure is reported to the
// caller so it can fall back to a cached snapshot.
func readGroup(fd int) (map[uint64]uint64, error) {
	// Header (nr uint64) + up to a handful of (value, id) pairs. 4096
	// bytes, as in the original shim, is comfortably oversized.
	var buf [4096]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, os.ErrClosed
	}

	nr := binary.NativeEndian.Uint64(buf[0:8])
	out := make(map[uint64]uint64, nr)
	for i := uint64(0); i < nr; i++ {
		off := 8 + i*16
		if off+16 > uint64(n) {
			break
		}
		value := binary.NativeEndian.Uint64(buf[off : off+8])
		id := binary.NativeEndian.Uint64(buf[off+8 : off+16])
		out[id] = value
	}
	return out, nil
}

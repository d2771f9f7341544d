// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procmaps reads the calling process's /proc/self/maps to find the
// bounds of the stack mapping, the same way the original C++ shim's
// getStackBounds did.
package procmaps

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// StackBounds returns the [start, end) address range of the "[stack]"
// mapping in /proc/self/maps. It returns ok=false if the maps file can't be
// read or no such mapping is found.
func StackBounds() (start, end uintptr, ok bool) {
	return stackBoundsFrom("/proc/self/maps")
}

func stackBoundsFrom(path string) (start, end uintptr, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "[stack]") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rng := fields[0]
		dash := strings.IndexByte(rng, '-')
		if dash < 0 {
			continue
		}

		var lo, hi uint64
		if _, err := fmt.Sscanf(rng[:dash], "%x", &lo); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(rng[dash+1:], "%x", &hi); err != nil {
			continue
		}
		return uintptr(lo), uintptr(hi), true
	}
	return 0, 0, false
}

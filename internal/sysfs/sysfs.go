// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sysfs reads the small, oddly-formatted scalar files under
// /sys that describe PMUs, their events and RAPL energy counters.
package sysfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadUint reads a plain decimal integer from path, e.g.
// /sys/bus/event_source/devices/power/type.
func ReadUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// ReadEventConfig reads a perf "events" sysfs file of the form
// "event=0xNN\n" (optionally followed by more comma-separated terms, which
// are ignored) and returns the numeric value of the event= term.
func ReadEventConfig(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	term := strings.Split(strings.TrimSpace(string(data)), ",")[0]
	const prefix = "event="
	if !strings.HasPrefix(term, prefix) {
		return 0, fmt.Errorf("sysfs: unrecognized event format %q", term)
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(term, prefix), "0x")
	return strconv.ParseUint(hex, 16, 64)
}

// ReadScale reads a perf "*.scale" sysfs file, a single floating point
// number in scientific notation.
func ReadScale(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

// ListDir returns the names of entries directly under dir, or nil if dir
// cannot be read.
func ListDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

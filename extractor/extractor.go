// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package extractor turns an opaque parallel-region payload into a
// fixed-length feature vector by scanning the calling thread's stack for
// words that equal a previously registered heap allocation's base address.
package extractor

import (
	"sync"
	"unsafe"

	"github.com/loadshift/graybox/internal/obslog"
	"github.com/loadshift/graybox/internal/procmaps"
	"github.com/loadshift/graybox/registry"
)

// NRMetrics is the fixed feature-vector length: one slot for the current
// thread count plus nine slots for discovered allocation sizes.
const NRMetrics = 10

// maxSlots is the number of address slots available, NRMetrics-1.
const maxSlots = NRMetrics - 1

// Extractor assigns permanent feature slots to discovered allocation
// addresses and turns a payload pointer into a feature vector. It is safe
// for concurrent use; slot assignment is serialized internally.
type Extractor struct {
	reg         *registry.Registry
	stackBounds func() (start, end uintptr, ok bool) // overridable in tests

	mu      sync.Mutex
	slotOf  map[uintptr]int // address -> slot in [1, maxSlots]
	nextIdx int             // number of slots assigned so far
}

// New returns an Extractor that resolves discovered addresses against reg.
func New(reg *registry.Registry) *Extractor {
	return &Extractor{reg: reg, stackBounds: procmaps.StackBounds, slotOf: make(map[uintptr]int)}
}

// SetStackBounds overrides how Extract determines the scannable stack
// window. It exists so callers driving the pipeline in-process (tests, and
// host runtimes that manage their own goroutine/thread stacks rather than
// relying on /proc/self/maps) can supply bounds directly.
func (e *Extractor) SetStackBounds(f func() (start, end uintptr, ok bool)) {
	e.stackBounds = f
}

// Extract scans the stack from payload up to the bounds of the [stack]
// mapping and returns a feature vector of length NRMetrics. threadCount is
// recorded at slot 0 unconditionally. If payload does not fall within the
// stack bounds, or the bounds cannot be determined, every slot but 0 is
// left zero.
func (e *Extractor) Extract(payload unsafe.Pointer, threadCount int) [NRMetrics]float64 {
	var features [NRMetrics]float64
	features[0] = float64(threadCount)

	if payload == nil {
		return features
	}

	start, end, ok := e.stackBounds()
	if !ok {
		obslog.Get().Warn("stack bounds unavailable, returning zero feature vector")
		return features
	}

	addr := uintptr(payload)
	if addr < start || addr > end {
		obslog.Get().Warn("payload outside stack bounds", "addr", addr)
		return features
	}

	wordSize := uintptr(unsafe.Sizeof(uintptr(0)))
	numWords := int((end - addr) / wordSize)

	found := 0
	for i := 0; i < numWords; i++ {
		word := *(*uintptr)(unsafe.Pointer(addr + uintptr(i)*wordSize))

		size, ok := e.reg.Lookup(word)
		if !ok {
			continue
		}

		slot := e.slotFor(word)
		if slot != 0 {
			features[slot] = float64(size)
		}

		found++
		if found == maxSlots {
			break
		}
	}

	return features
}

// slotFor returns the permanent feature slot for addr, assigning the next
// free one (in [1, maxSlots]) the first time addr is seen. Once capacity is
// exhausted, previously unseen addresses get slot 0 (ignored by Extract,
// since slot 0 is reserved for thread count and is never overwritten for an
// address lookup in practice because Extract only calls this for addresses
// the registry already knows).
func (e *Extractor) slotFor(addr uintptr) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if slot, ok := e.slotOf[addr]; ok {
		return slot
	}
	if e.nextIdx >= maxSlots {
		return 0
	}
	e.nextIdx++
	slot := e.nextIdx
	e.slotOf[addr] = slot
	return slot
}

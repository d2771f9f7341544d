// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadshift/graybox/counters"
	"github.com/loadshift/graybox/extractor"
	"github.com/loadshift/graybox/predictor"
	"github.com/loadshift/graybox/registry"
)

// fakeHWCounters is a counters.Handle with scripted successive readings.
type fakeHWCounters struct {
	readings []counters.Snapshot
	i        int
}

func (f *fakeHWCounters) Read() counters.Snapshot {
	s := f.readings[f.i]
	if f.i < len(f.readings)-1 {
		f.i++
	}
	return s
}
func (f *fakeHWCounters) Close() {}

// fakeEnergy is an energy.Counter with scripted successive readings.
type fakeEnergy struct {
	readings []uint64
	i        int
}

func (f *fakeEnergy) Read() uint64 {
	v := f.readings[f.i]
	if f.i < len(f.readings)-1 {
		f.i++
	}
	return v
}
func (f *fakeEnergy) Close() {}

func regionFn()  {} // a real function, for a stable code pointer
func regionFn2() {} // a second, distinct region identity

func TestDispatchSingleRegionSingleAllocation(t *testing.T) {
	dir := t.TempDir()

	reg := registry.New()
	reg.Register(0xA, 4000)
	reg.Promote()
	ex := extractor.New(reg)

	var words [1]uintptr
	words[0] = 0xA
	payload := unsafe.Pointer(&words[0])
	// Inject fake stack bounds so the extractor accepts this payload
	// regardless of where the Go runtime actually placed it.
	injectStackBounds(t, ex, uintptr(payload), uintptr(payload)+unsafe.Sizeof(uintptr(0)))

	hw := &fakeHWCounters{readings: []counters.Snapshot{
		{"Instructions": 1000, "Cache_Misses": 10},
		{"Instructions": 1500, "Cache_Misses": 12},
	}}
	en := &fakeEnergy{readings: []uint64{500, 800}}
	source := &CounterSource{Mu: &sync.Mutex{}, Counters: hw, Energy: en}

	p, err := New(dir, predictor.NewFactory(predictor.LLSP, ""), source, ex, fixedThreadCount(4))
	require.NoError(t, err)

	var ran bool
	p.Dispatch(regionFn, payload, func() { ran = true })
	require.NoError(t, p.Close())

	assert.True(t, ran)

	progress, err := os.ReadFile(filepath.Join(dir, "progress.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(progress), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, progressHeader, lines[0])
	assert.Equal(t, "1,4,4000,0,0,0,0,0,0,0,0", lines[1])

	measurements, err := os.ReadFile(filepath.Join(dir, "measurements", "01.csv"))
	require.NoError(t, err)
	mLines := strings.Split(strings.TrimRight(string(measurements), "\n"), "\n")
	require.Len(t, mLines, 2)
	assert.Equal(t, "Cache_Misses,Energy,Instructions,", mLines[0])
	assert.Equal(t, "2,300,500,", mLines[1]) // cache misses delta 2, energy delta 300, instructions delta 500

	predictions, err := os.ReadFile(filepath.Join(dir, "predictions", "01.csv"))
	require.NoError(t, err)
	pLines := strings.Split(strings.TrimRight(string(predictions), "\n"), "\n")
	require.Len(t, pLines, 2)
	assert.Equal(t, "0,0,0,", pLines[1], "pre-fit priors are zero for llsp")
}

func TestDispatchAssignsConsecutiveRegionIDs(t *testing.T) {
	dir := t.TempDir()
	ex := extractor.New(registryLive())
	source := &CounterSource{Mu: &sync.Mutex{}}
	p, err := New(dir, predictor.NewFactory(predictor.LLSP, ""), source, ex, fixedThreadCount(1))
	require.NoError(t, err)

	fnA := regionFn
	fnB := regionFn2

	p.Dispatch(fnA, nil, func() {})
	p.Dispatch(fnB, nil, func() {})
	p.Dispatch(fnA, nil, func() {}) // same region again: id must not change

	idA, _ := p.regionFor(fnA)
	idB, _ := p.regionFor(fnB)
	assert.Equal(t, uint64(1), idA)
	assert.Equal(t, uint64(2), idB)
	require.NoError(t, p.Close())
}

func TestDispatchNeverSkipsRealCall(t *testing.T) {
	dir := t.TempDir()
	ex := extractor.New(registryLive())
	source := &CounterSource{Mu: &sync.Mutex{}}
	p, err := New(dir, predictor.NewFactory(predictor.LLSP, ""), source, ex, fixedThreadCount(1))
	require.NoError(t, err)
	defer p.Close()

	calls := 0
	for i := 0; i < 3; i++ {
		p.Dispatch(regionFn, nil, func() { calls++ })
	}
	assert.Equal(t, 3, calls)
}

func fixedThreadCount(n int) func() int {
	return func() int { return n }
}

func registryLive() *registry.Registry {
	r := registry.New()
	r.Promote()
	return r
}

func injectStackBounds(t *testing.T, ex *extractor.Extractor, lo, hi uintptr) {
	t.Helper()
	ex.SetStackBounds(func() (uintptr, uintptr, bool) { return lo, hi, true })
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sampler

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadshift/graybox/counters"
	"github.com/loadshift/graybox/pipeline"
)

type fakeHW struct {
	mu   sync.Mutex
	snap counters.Snapshot
}

func (f *fakeHW) Read() counters.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}
func (f *fakeHW) Close() {}

func (f *fakeHW) set(s counters.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func TestOpenWritesHeader(t *testing.T) {
	dir := t.TempDir()
	source := &pipeline.CounterSource{Mu: &sync.Mutex{}}

	s, err := Open(dir, source)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	data, err := os.ReadFile(filepath.Join(dir, "monitoring.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Cache_Misses,Energy,Instructions,\n", string(data))
}

func TestSampleOnceAppendsDeltaLine(t *testing.T) {
	dir := t.TempDir()
	hw := &fakeHW{snap: counters.Snapshot{"Instructions": 100, "Cache_Misses": 5}}
	source := &pipeline.CounterSource{Mu: &sync.Mutex{}, Counters: hw}

	s, err := Open(dir, source)
	require.NoError(t, err)

	s.sampleOnce()
	hw.set(counters.Snapshot{"Instructions": 150, "Cache_Misses": 9})
	s.sampleOnce()

	require.NoError(t, s.Stop())

	data, err := os.ReadFile(filepath.Join(dir, "monitoring.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "5,0,100,", lines[1])
	assert.Equal(t, "4,0,50,", lines[2])
}

func TestRunStopsPromptlyOnStop(t *testing.T) {
	dir := t.TempDir()
	source := &pipeline.CounterSource{Mu: &sync.Mutex{}}
	s, err := Open(dir, source)
	require.NoError(t, err)

	go s.Run()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestRunRecordsSamplesBeforeStop(t *testing.T) {
	dir := t.TempDir()
	hw := &fakeHW{snap: counters.Snapshot{"Instructions": 1}}
	source := &pipeline.CounterSource{Mu: &sync.Mutex{}, Counters: hw}
	s, err := Open(dir, source)
	require.NoError(t, err)

	go s.Run()
	time.Sleep(130 * time.Millisecond)
	require.NoError(t, s.Stop())

	data, err := os.ReadFile(filepath.Join(dir, "monitoring.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// Header plus at least one sample in ~130ms at a 50ms cadence.
	assert.GreaterOrEqual(t, len(lines), 2)
}

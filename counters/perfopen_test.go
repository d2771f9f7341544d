// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counters

import (
	"encoding/binary"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/loadshift/graybox/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHWEventConfigCoversHWEvents(t *testing.T) {
	for _, ev := range HWEvents {
		_, ok := hwEventConfig[ev]
		assert.True(t, ok, "missing hardware config for %s", ev)
	}
	_, ok := hwEventConfig[events.Energy]
	assert.False(t, ok, "energy is read from the power PMU, not PERF_TYPE_HARDWARE")
}

func TestReadGroupDecodesPairs(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	var buf []byte
	buf = binary.NativeEndian.AppendUint64(buf, 2)
	buf = binary.NativeEndian.AppendUint64(buf, 1234)
	buf = binary.NativeEndian.AppendUint64(buf, 1)
	buf = binary.NativeEndian.AppendUint64(buf, 5678)
	buf = binary.NativeEndian.AppendUint64(buf, 2)
	_, err = w.Write(buf)
	require.NoError(t, err)
	w.Close()

	got, err := readGroup(int(r.Fd()))
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{1: 1234, 2: 5678}, got)
}

func TestReadGroupShortReadIsError(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	w.Close()

	_, err = readGroup(int(r.Fd()))
	assert.Error(t, err)
}

func TestOpenGroupedCounterRejectsAnyProcessOnAnyCPU(t *testing.T) {
	_, _, err := openGroupedCounter(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS, -1, -1)
	assert.Error(t, err)
}

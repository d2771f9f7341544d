// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadRowsSkipsHeaderAndTrailingComma(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.csv")
	writeCSV(t, path, "Cache_Misses,Energy,Instructions,\n2,300,500,\n4,0,50,\n")

	rows, err := readRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []float64{2, 300, 500}, rows[0])
	assert.Equal(t, []float64{4, 0, 50}, rows[1])
}

func TestLoadRegionJoinsByCallOrder(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "progress.csv"),
		"Functions,Metrics,,,,,,,,,\n"+
			"1,4,4000,0,0,0,0,0,0,0,0\n"+
			"2,1,0,0,0,0,0,0,0,0,0\n"+ // different region, must be skipped
			"1,4,5000,0,0,0,0,0,0,0,0\n")
	writeCSV(t, filepath.Join(dir, "measurements", "01.csv"),
		"Cache_Misses,Energy,Instructions,\n2,300,500,\n3,400,600,\n")
	writeCSV(t, filepath.Join(dir, "predictions", "01.csv"),
		"Cache_Misses,Energy,Instructions,\n0,0,0,\n1.5,290,480,\n")

	calls, err := loadRegion(dir, 1)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, []float64{4, 4000, 0, 0, 0, 0, 0, 0, 0, 0}, calls[0].features)
	assert.Equal(t, [3]float64{2, 300, 500}, calls[0].measured)
	assert.Equal(t, [3]float64{1.5, 290, 480}, calls[1].predicted)
}

func TestDiscoverRegionsListsMeasurementFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "measurements", "01.csv"), "Cache_Misses,Energy,Instructions,\n")
	writeCSV(t, filepath.Join(dir, "measurements", "02.csv"), "Cache_Misses,Energy,Instructions,\n")

	ids, err := discoverRegions(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, ids)
}

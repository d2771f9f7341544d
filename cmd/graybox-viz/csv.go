// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// readRows reads a graybox CSV output file and returns each data row's
// fields as float64, skipping the header line. measurements/NN.csv and
// predictions/NN.csv terminate every record in a trailing comma (one
// comma written per value); progress.csv does not. Either way, a
// trailing empty field left by a trailing comma is dropped if present.
// A short or unparseable field becomes 0 rather than failing the whole
// file, since this tool is a best-effort offline viewer, not a
// validator.
func readRows(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		// Drop the trailing empty field left by the trailing comma.
		if len(fields) > 0 && fields[len(fields)-1] == "" {
			fields = fields[:len(fields)-1]
		}
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, _ := strconv.ParseFloat(field, 64)
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, sc.Err()
}

// regionCall is one dispatch of one region: the extracted features at
// predict time, and the predicted and measured deltas for Cache_Misses,
// Energy and Instructions, in that fixed order.
type regionCall struct {
	features  []float64
	predicted [3]float64
	measured  [3]float64
}

// loadRegion joins progress.csv (filtered to region), predictions/NN.csv
// and measurements/NN.csv by call order: the i-th progress.csv row for this
// region corresponds to the i-th row of its measurement and prediction
// files, since the pipeline writes all three in the same Dispatch call.
func loadRegion(dir string, region uint64) ([]regionCall, error) {
	progress, err := readRows(filepath.Join(dir, "progress.csv"))
	if err != nil {
		return nil, fmt.Errorf("reading progress.csv: %w", err)
	}

	name := fmt.Sprintf("%02d.csv", region)
	measurements, err := readRows(filepath.Join(dir, "measurements", name))
	if err != nil {
		return nil, fmt.Errorf("reading measurements/%s: %w", name, err)
	}
	predictions, err := readRows(filepath.Join(dir, "predictions", name))
	if err != nil {
		return nil, fmt.Errorf("reading predictions/%s: %w", name, err)
	}

	var ownRows [][]float64
	for _, row := range progress {
		if len(row) == 0 || uint64(row[0]) != region {
			continue
		}
		ownRows = append(ownRows, row[1:]) // drop the region id column
	}

	n := len(ownRows)
	if len(measurements) < n {
		n = len(measurements)
	}
	if len(predictions) < n {
		n = len(predictions)
	}

	calls := make([]regionCall, n)
	for i := 0; i < n; i++ {
		calls[i].features = ownRows[i]
		copy(calls[i].measured[:], measurements[i])
		copy(calls[i].predicted[:], predictions[i])
	}
	return calls, nil
}

// discoverRegions lists the region ids with a measurements file under dir.
func discoverRegions(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "measurements"))
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".csv")
		id, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

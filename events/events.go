// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events names the three counters graybox predicts and measures.
package events

// Kind identifies one of the three tracked counters: two hardware counters
// read together as one perf_event group, and one energy counter read from
// a separate RAPL PMU.
type Kind int

const (
	CacheMisses Kind = iota
	Energy
	Instructions
)

// Order is the fixed iteration order used for prediction, measurement and
// file output: Cache misses, then energy, then instructions.
var Order = [...]Kind{CacheMisses, Energy, Instructions}

// String returns the stable name used as a map key and in CSV headers.
func (k Kind) String() string {
	switch k {
	case CacheMisses:
		return "Cache_Misses"
	case Energy:
		return "Energy"
	case Instructions:
		return "Instructions"
	default:
		return "Unknown"
	}
}

// Header is the literal CSV header line shared by monitoring.csv and every
// per-region measurements/NN.csv and predictions/NN.csv file.
const Header = "Cache_Misses,Energy,Instructions,"

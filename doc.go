// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graybox is a transparent performance-prediction and measurement
// shim for host programs that dispatch parallel regions.
//
// For every parallel region a host invokes through the hooks in package
// shim, graybox extracts workload-describing features from the region's
// opaque payload (package extractor), asks a per-region online model to
// predict hardware and energy counters for the upcoming execution (package
// predictor), measures the same counters over the real execution (packages
// counters and energy), and feeds the measurement back so the next
// prediction improves (package pipeline). A background sampler (package
// sampler) records system-wide counter deltas at a fixed cadence for
// post-mortem analysis.
//
// graybox only runs on Linux: the hardware-counter and energy interfaces it
// wraps are perf_event_open(2), sysfs PMU device nodes, and the powercap
// RAPL tree, none of which exist on other kernels.
package graybox // import "github.com/loadshift/graybox"

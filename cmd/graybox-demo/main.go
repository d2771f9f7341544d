// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command graybox-demo drives the graybox pipeline against a synthetic
// in-process "parallel runtime": a tiny goroutine-based stand-in for a real
// OpenMP host program, so the prediction/measurement/fit cycle can be
// exercised end to end without one. It is a demo harness, not a substitute
// for the real host program or host parallel runtime graybox is designed
// to sit inside.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/loadshift/graybox/registry"
	"github.com/loadshift/graybox/shim"
)

type demoOpts struct {
	regions    int
	iterations int
	threads    int
	payload    int
	seed       int64
}

func main() {
	var o demoOpts

	root := &cobra.Command{
		Use:   "graybox-demo",
		Short: "Exercise the graybox prediction/measurement pipeline against a synthetic parallel workload",
		Long: `graybox-demo dispatches a fixed number of synthetic parallel regions,
repeatedly, through the graybox shim, so its CSV outputs (progress.csv,
measurements/NN.csv, predictions/NN.csv, monitoring.csv) can be inspected
or rendered with graybox-viz without a real OpenMP host program.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	root.Flags().IntVarP(&o.regions, "regions", "r", 3, "number of distinct synthetic parallel regions")
	root.Flags().IntVarP(&o.iterations, "iterations", "n", 20, "number of times each region is dispatched")
	root.Flags().IntVarP(&o.threads, "threads", "t", 4, "thread count passed to the shim's SetNumThreads hook")
	root.Flags().IntVarP(&o.payload, "payload", "p", 4096, "bytes allocated per region dispatch")
	root.Flags().Int64Var(&o.seed, "seed", 1, "random seed for synthetic work durations")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is the synthetic stand-in for a host OpenMP-like runtime: it owns
// the graybox shim and a fixed pool of "region" closures to dispatch.
type runtime struct {
	s       *shim.Shim
	rng     *rand.Rand
	payload int
}

// newRegionWork returns a distinct work closure for region index i. Each
// closure allocates a buffer through the shim's Malloc hook, which records
// it in the registry, and then busy-waits for a synthetic, region-dependent
// duration to produce distinguishable counter deltas across regions. The
// buffer's address is never written into the dispatch payload, so the
// extractor does not find it.
func (rt *runtime) newRegionWork(i int) func() {
	base := time.Duration(i+1) * 200 * time.Microsecond
	return func() {
		buf := rt.s.Malloc(uintptr(rt.payload), func(size uintptr) unsafe.Pointer {
			b := make([]byte, size)
			return unsafe.Pointer(&b[0])
		})
		jitter := time.Duration(rt.rng.Int63n(int64(base)))
		spin(base + jitter)
		_ = buf
	}
}

// spin busy-waits for d so the synthetic region actually consumes
// measurable instructions, rather than just sleeping the scheduler away.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	x := 0
	for time.Now().Before(deadline) {
		x++
	}
	_ = x
}

func run(o demoOpts) error {
	reg := registry.New()
	s, err := shim.Start(reg)
	if err != nil {
		return fmt.Errorf("starting graybox: %w", err)
	}
	defer func() {
		if err := s.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "graybox-demo: stopping graybox: %v\n", err)
		}
	}()

	s.SetNumThreads(o.threads, func(int) {})

	rt := &runtime{s: s, rng: rand.New(rand.NewSource(o.seed)), payload: o.payload}

	// work holds each region's dispatch closure. All of them are
	// instantiated from the same newRegionWork literal, so their
	// reflected code pointers are identical; regionIdentity below gives
	// the shim a stable, distinct identity per region instead.
	work := make([]func(), o.regions)
	regionIdentity := make([]*int, o.regions)
	for i := range work {
		work[i] = rt.newRegionWork(i)
		id := i
		regionIdentity[i] = &id
	}

	var wg sync.WaitGroup
	for iter := 0; iter < o.iterations; iter++ {
		for i := range work {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var words [1]uintptr
				payload := unsafe.Pointer(&words[0])
				s.ParallelRegion(regionIdentity[i], payload, work[i])
			}(i)
		}
		wg.Wait()
	}

	fmt.Fprintf(os.Stderr, "graybox-demo: dispatched %d regions x %d iterations\n", o.regions, o.iterations)
	return nil
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command graybox-viz renders per-region heatmaps from graybox's CSV
// output directory: one PNG per region, rows are calls in dispatch order,
// columns are the ten extracted feature slots plus the measured and
// predicted Cache_Misses/Energy/Instructions deltas.
//
// This is an offline consumer of progress.csv, measurements/NN.csv and
// predictions/NN.csv; it never runs the pipeline itself.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

func main() {
	var (
		flagDir    = flag.String("dir", "./csvs", "graybox CSV output `dir`")
		flagOut    = flag.String("out", "./heatmaps", "output `dir` for PNG heatmaps")
		flagRegion = flag.Uint64("region", 0, "render only this region id (0 means all regions)")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	regions := []uint64{*flagRegion}
	if *flagRegion == 0 {
		var err error
		regions, err = discoverRegions(*flagDir)
		if err != nil {
			log.Fatalf("discovering regions under %s: %v", *flagDir, err)
		}
		if len(regions) == 0 {
			log.Fatalf("no regions found under %s/measurements", *flagDir)
		}
	}

	if err := os.MkdirAll(*flagOut, 0o755); err != nil {
		log.Fatal(err)
	}

	for _, region := range regions {
		calls, err := loadRegion(*flagDir, region)
		if err != nil {
			log.Printf("region %d: %v", region, err)
			continue
		}
		if len(calls) == 0 {
			log.Printf("region %d: no calls recorded, skipping", region)
			continue
		}

		outPath := filepath.Join(*flagOut, fmt.Sprintf("region-%02d.png", region))
		if err := renderHeatmap(outPath, calls); err != nil {
			log.Printf("region %d: %v", region, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d calls)\n", outPath, len(calls))
	}
}

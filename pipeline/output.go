// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/extractor"
	"github.com/loadshift/graybox/predictor"
)

const progressHeader = "Functions,Metrics,,,,,,,,,"

// regionFiles holds one region's two per-call output streams.
type regionFiles struct {
	measurements *bufio.Writer
	predictions  *bufio.Writer
	mFile        *os.File
	pFile        *os.File
}

// outputs owns every CSV stream the pipeline writes to: the process-wide
// progress stream, and one pair of measurement/prediction streams per
// region.
type outputs struct {
	dir       string
	progress  *bufio.Writer
	progressF *os.File

	mu      sync.Mutex
	regions map[uint64]*regionFiles
}

func newOutputs(dir string) (*outputs, error) {
	if err := os.MkdirAll(filepath.Join(dir, "measurements"), 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: creating measurements dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "predictions"), 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: creating predictions dir: %w", err)
	}

	progressF, err := os.Create(filepath.Join(dir, "progress.csv"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating progress.csv: %w", err)
	}
	progress := bufio.NewWriter(progressF)
	if _, err := progress.WriteString(progressHeader + "\n"); err != nil {
		return nil, fmt.Errorf("pipeline: writing progress.csv header: %w", err)
	}

	return &outputs{
		dir:       dir,
		progress:  progress,
		progressF: progressF,
		regions:   make(map[uint64]*regionFiles),
	}, nil
}

// createRegionStreams opens the measurement and prediction CSV files for a
// newly discovered region and writes their shared header. Callers must
// already hold whatever lock serializes first-sighting for id.
func (o *outputs) createRegionStreams(id uint64) error {
	name := fmt.Sprintf("%02d.csv", id)

	mFile, err := os.Create(filepath.Join(o.dir, "measurements", name))
	if err != nil {
		return fmt.Errorf("pipeline: creating measurements/%s: %w", name, err)
	}
	pFile, err := os.Create(filepath.Join(o.dir, "predictions", name))
	if err != nil {
		mFile.Close()
		return fmt.Errorf("pipeline: creating predictions/%s: %w", name, err)
	}

	rf := &regionFiles{
		measurements: bufio.NewWriter(mFile),
		predictions:  bufio.NewWriter(pFile),
		mFile:        mFile,
		pFile:        pFile,
	}
	if _, err := rf.measurements.WriteString(events.Header + "\n"); err != nil {
		return fmt.Errorf("pipeline: writing measurements/%s header: %w", name, err)
	}
	if _, err := rf.predictions.WriteString(events.Header + "\n"); err != nil {
		return fmt.Errorf("pipeline: writing predictions/%s header: %w", name, err)
	}

	o.mu.Lock()
	o.regions[id] = rf
	o.mu.Unlock()
	return nil
}

func (o *outputs) region(id uint64) *regionFiles {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.regions[id]
}

// writePrediction calls Predict on each of the region's predictors in
// events.Order and appends the resulting "prediction," record.
func (o *outputs) writePrediction(id uint64, preds [3]predictor.Predictor, features []float64) error {
	rf := o.region(id)
	if rf == nil {
		return fmt.Errorf("pipeline: no output streams for region %d", id)
	}

	for i := range events.Order {
		if _, err := fmt.Fprintf(rf.predictions, "%g,", preds[i].Predict(features)); err != nil {
			return err
		}
	}
	if _, err := rf.predictions.WriteString("\n"); err != nil {
		return err
	}
	return rf.predictions.Flush()
}

// writeProgress appends "<id>,<features...>\n" to the process-wide
// progress stream, comma-separated with no trailing comma.
func (o *outputs) writeProgress(id uint64, features [extractor.NRMetrics]float64) error {
	if _, err := fmt.Fprintf(o.progress, "%d", id); err != nil {
		return err
	}
	for _, f := range features {
		if _, err := fmt.Fprintf(o.progress, ",%g", f); err != nil {
			return err
		}
	}
	if _, err := o.progress.WriteString("\n"); err != nil {
		return err
	}
	return o.progress.Flush()
}

// writeMeasurement computes the delta for each tracked event between
// before and after, appends the "delta," measurement record, and feeds the
// delta back into the matching predictor via Fit.
func (o *outputs) writeMeasurement(id uint64, preds [3]predictor.Predictor, features []float64, before, after map[events.Kind]uint64) error {
	rf := o.region(id)
	if rf == nil {
		return fmt.Errorf("pipeline: no output streams for region %d", id)
	}

	for i, ev := range events.Order {
		delta := after[ev] - before[ev]
		if _, err := fmt.Fprintf(rf.measurements, "%d,", delta); err != nil {
			return err
		}
		preds[i].Fit(features, float64(delta))
	}
	if _, err := rf.measurements.WriteString("\n"); err != nil {
		return err
	}
	return rf.measurements.Flush()
}

func (o *outputs) close() error {
	o.progress.Flush()
	err := o.progressF.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rf := range o.regions {
		rf.measurements.Flush()
		rf.predictions.Flush()
		if cerr := rf.mFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := rf.pFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

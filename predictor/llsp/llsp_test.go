// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictBeforeFitIsZero(t *testing.T) {
	s := New(3)
	assert.Equal(t, 0.0, s.Predict([]float64{1, 2, 3}))
}

func TestFitThenPredictConvergesOnLinearData(t *testing.T) {
	// y = 2*x0 + 3*x1, noiseless, width 2: the system becomes solvable
	// once two independent examples have been fit.
	s := New(2)
	s.Fit([]float64{1, 0}, 2)
	s.Fit([]float64{0, 1}, 3)

	got := s.Predict([]float64{2, 2})
	assert.InDelta(t, 10.0, got, 1e-6)
}

func TestSingularSystemPredictsZero(t *testing.T) {
	s := New(2)
	s.Fit([]float64{1, 0}, 2)
	// Only one independent example so far: ata is singular, solve fails,
	// predictor still reports its 0 prior.
	assert.Equal(t, 0.0, s.Predict([]float64{1, 0}))
}

func TestFitShorterThanWidthIsTolerated(t *testing.T) {
	s := New(5)
	assert.NotPanics(t, func() {
		s.Fit([]float64{1, 2}, 3)
	})
}

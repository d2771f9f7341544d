// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package llsp implements a minimal incremental linear least-squares
// predictor, the in-repo stand-in for the original shim's statically
// linked liblsp solver. It accumulates the normal equations X^T X and X^T y
// across Fit calls and solves them by Gaussian elimination on demand.
package llsp

import "sync"

// Solver is one region-event's least-squares model over a fixed-width
// feature vector. The zero value is not usable; construct with New.
type Solver struct {
	width int

	mu       sync.Mutex
	fitCount int
	ata      [][]float64 // width x width, accumulated X^T X
	atb      []float64   // width, accumulated X^T y
	coef     []float64   // last solved coefficients, nil until first solve
}

// New returns a Solver for feature vectors of the given width.
func New(width int) *Solver {
	ata := make([][]float64, width)
	for i := range ata {
		ata[i] = make([]float64, width)
	}
	return &Solver{width: width, ata: ata, atb: make([]float64, width)}
}

// Predict returns the solver's current estimate for features. Before the
// first Fit, it returns 0 without error, as the predictor contract requires.
func (s *Solver) Predict(features []float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fitCount == 0 {
		return 0
	}
	if s.coef == nil {
		s.coef = solve(s.ata, s.atb)
	}
	if s.coef == nil {
		// Singular system (fewer than width independent examples so
		// far): fall back to the prior of 0 rather than erroring.
		return 0
	}

	var sum float64
	for i, f := range features {
		if i >= len(s.coef) {
			break
		}
		sum += s.coef[i] * f
	}
	return sum
}

// Fit appends one training example, updating the accumulated normal
// equations and invalidating the cached solution.
func (s *Solver) Fit(features []float64, observed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.width
	if len(features) < n {
		n = len(features)
	}
	for i := 0; i < n; i++ {
		s.atb[i] += features[i] * observed
		for j := 0; j < n; j++ {
			s.ata[i][j] += features[i] * features[j]
		}
	}
	s.fitCount++
	s.coef = nil
}

// solve solves a*x = b by Gaussian elimination with partial pivoting. It
// returns nil if the system is (numerically) singular.
func solve(a [][]float64, b []float64) []float64 {
	n := len(b)
	m := make([][]float64, n)
	rhs := make([]float64, n)
	copy(rhs, b)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(m[r][col]) > abs(m[pivot][col]) {
				pivot = r
			}
		}
		if abs(m[pivot][col]) < 1e-12 {
			return nil
		}
		m[col], m[pivot] = m[pivot], m[col]
		rhs[col], rhs[pivot] = rhs[pivot], rhs[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c < n; c++ {
				m[r][c] -= factor * m[col][c]
			}
			rhs[r] -= factor * rhs[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := rhs[i]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package predictor provides the pluggable per-region, per-event regression
// backend: predict before measurement, fit after.
package predictor

import (
	"fmt"
	"sync"

	"github.com/loadshift/graybox/events"
	"github.com/loadshift/graybox/extractor"
	"github.com/loadshift/graybox/predictor/llsp"
)

// Kind is the closed set of predictor backends the process can be
// configured to use.
type Kind int

const (
	LLSP Kind = iota
	Poly
	GPR
	NN
	SVM
)

// ParseKind maps the PREDICTOR environment variable's value to a Kind,
// defaulting to LLSP for an empty or unrecognized value.
func ParseKind(s string) Kind {
	switch s {
	case "poly":
		return Poly
	case "gpr":
		return GPR
	case "nn":
		return NN
	case "svm":
		return SVM
	default:
		return LLSP
	}
}

func (k Kind) String() string {
	switch k {
	case LLSP:
		return "llsp"
	case Poly:
		return "poly"
	case GPR:
		return "gpr"
	case NN:
		return "nn"
	case SVM:
		return "svm"
	default:
		return "unknown"
	}
}

// Predictor is one region's, one event's regression model.
type Predictor interface {
	// Predict returns the model's current estimate for features. Before
	// any Fit call the LLSP backend returns 0; the external backend
	// returns whatever its process answers.
	Predict(features []float64) float64

	// Fit appends one training example: the features used for the
	// matching Predict call, and the observed delta.
	Fit(features []float64, observed float64)
}

// Factory creates a fresh Predictor instance of the process-wide kind. The
// external command used by Poly/GPR/NN/SVM is fixed at construction.
type Factory struct {
	kind        Kind
	externalCmd string
}

// NewFactory returns a Factory that creates predictors of kind, shelling
// out to externalCmd for any kind other than LLSP.
func NewFactory(kind Kind, externalCmd string) *Factory {
	return &Factory{kind: kind, externalCmd: externalCmd}
}

func (f *Factory) new() Predictor {
	if f.kind == LLSP {
		return llsp.New(extractor.NRMetrics)
	}
	return newExternal(f.kind, f.externalCmd)
}

// Registry creates and retains the three event predictors for every region
// discovered so far.
type Registry struct {
	factory *Factory

	mu      sync.Mutex
	regions map[uint64][3]Predictor // region id -> predictors indexed by events.Order position
}

// NewRegistry returns a Registry that creates predictors via factory.
func NewRegistry(factory *Factory) *Registry {
	return &Registry{factory: factory, regions: make(map[uint64][3]Predictor)}
}

// For returns the three predictors for regionID, in events.Order, creating
// them on first sighting.
func (r *Registry) For(regionID uint64) [3]Predictor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if preds, ok := r.regions[regionID]; ok {
		return preds
	}

	var preds [3]Predictor
	for i := range events.Order {
		preds[i] = r.factory.new()
	}
	r.regions[regionID] = preds
	return preds
}

// Predictor returns the predictor for regionID's ev slot, creating the
// region's predictors on first sighting.
func (r *Registry) Predictor(regionID uint64, ev events.Kind) Predictor {
	preds := r.For(regionID)
	return preds[eventIndex(ev)]
}

// eventIndex returns ev's position in events.Order, used to index the
// [3]Predictor arrays For returns.
func eventIndex(ev events.Kind) int {
	for i, e := range events.Order {
		if e == ev {
			return i
		}
	}
	panic(fmt.Sprintf("predictor: event %s is not in events.Order", ev))
}

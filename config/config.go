// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads graybox's process-wide settings from the
// environment, the same variables the original LD_PRELOAD shim read via
// getenv.
package config

import "os"

// Config holds every environment-derived setting the shim needs at
// startup.
type Config struct {
	// Predictor is the PREDICTOR environment variable's raw value
	// ("llsp", "poly", "gpr", "nn", "svm"); predictor.ParseKind
	// normalizes it, defaulting to "llsp".
	Predictor string

	// LogLevel is the LOGLEVEL environment variable's raw value
	// ("DEBUG", "INFO", "WARNING", "ERROR"); obslog normalizes it,
	// defaulting to "ERROR".
	LogLevel string

	// OutputDir is the root directory CSV outputs are written under.
	// Defaults to "./csvs", the original's hard-coded path.
	OutputDir string

	// ExternalPredictorCmd is the command line invoked for the poly/gpr/
	// nn/svm predictor kinds. When it is empty, the first Predict or Fit
	// on a predictor of one of those kinds panics.
	ExternalPredictorCmd string
}

const defaultOutputDir = "./csvs"

// Load reads Config from the process environment.
func Load() Config {
	return Config{
		Predictor:            os.Getenv("PREDICTOR"),
		LogLevel:             os.Getenv("LOGLEVEL"),
		OutputDir:            getenvDefault("GRAYBOX_OUTPUT_DIR", defaultOutputDir),
		ExternalPredictorCmd: os.Getenv("GRAYBOX_EXTERNAL_PREDICTOR_CMD"),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

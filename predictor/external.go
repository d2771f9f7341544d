// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package predictor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/loadshift/graybox/internal/obslog"
)

// externalRequest is one line of the line-oriented JSON protocol sent to
// the external predictor process: "predict" requests get a response,
// "fit" requests are fire-and-forget training examples.
type externalRequest struct {
	Op       string    `json:"op"`
	Kind     string    `json:"kind"`
	Features []float64 `json:"features"`
	Observed float64   `json:"observed,omitempty"`
}

type externalResponse struct {
	Prediction float64 `json:"prediction"`
}

// external is the Predictor backend for Poly/GPR/NN/SVM: it shells out to
// GRAYBOX_EXTERNAL_PREDICTOR_CMD once per instance and exchanges
// line-delimited JSON requests/responses over its stdin/stdout, standing in
// for the original shim's embedded CPython predictor.py bridge.
type external struct {
	kind Kind
	cmd  string

	mu      sync.Mutex
	proc    *exec.Cmd
	in      *bufio.Writer
	out     *bufio.Scanner
	started bool
}

func newExternal(kind Kind, cmd string) *external {
	return &external{kind: kind, cmd: cmd}
}

// fatalf logs and panics. An external predictor fault means the model
// behind this region is poisoned: there is no meaningful prediction or fit
// to fall back to, so graybox cannot continue any more than the original
// shim's predictor_py.h could after a failed module, create, fit or
// predict call. Since nothing in this tree recovers, the panic propagates
// out through Dispatch/ParallelRegion and crashes the host process.
func (e *external) fatalf(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	obslog.Get().Error("external predictor fault", "kind", e.kind, "err", err)
	panic(fmt.Errorf("predictor: %s", err))
}

func (e *external) ensureStarted() {
	if e.started {
		return
	}
	e.started = true

	if e.cmd == "" {
		e.fatalf("GRAYBOX_EXTERNAL_PREDICTOR_CMD is unset for %s predictor", e.kind)
	}

	fields := strings.Fields(e.cmd)
	proc := exec.Command(fields[0], fields[1:]...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		e.fatalf("opening external predictor stdin: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		e.fatalf("opening external predictor stdout: %w", err)
	}
	if err := proc.Start(); err != nil {
		e.fatalf("starting external predictor %q: %w", e.cmd, err)
	}

	e.proc = proc
	e.in = bufio.NewWriter(stdin)
	e.out = bufio.NewScanner(stdout)
}

func (e *external) Predict(features []float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureStarted()

	e.send(externalRequest{Op: "predict", Kind: e.kind.String(), Features: features})
	if !e.out.Scan() {
		e.fatalf("external predictor closed its output stream")
	}

	var resp externalResponse
	if err := json.Unmarshal(e.out.Bytes(), &resp); err != nil {
		e.fatalf("external predictor returned malformed response: %w", err)
	}
	return resp.Prediction
}

func (e *external) Fit(features []float64, observed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureStarted()
	e.send(externalRequest{Op: "fit", Kind: e.kind.String(), Features: features, Observed: observed})
}

func (e *external) send(req externalRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		e.fatalf("encoding external predictor request: %w", err)
	}
	if _, err := e.in.Write(append(data, '\n')); err != nil {
		e.fatalf("writing external predictor request: %w", err)
	}
	if err := e.in.Flush(); err != nil {
		e.fatalf("flushing external predictor request: %w", err)
	}
}

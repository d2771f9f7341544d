// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package energy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenPerfFailsWithoutPowerPMU(t *testing.T) {
	orig := powerPMUDir
	powerPMUDir = filepath.Join(t.TempDir(), "missing")
	defer func() { powerPMUDir = orig }()

	assert.Nil(t, openPerf())
}

func TestOpenWithoutAnySourceReadsZero(t *testing.T) {
	origPower, origCap := powerPMUDir, powercapDir
	powerPMUDir = filepath.Join(t.TempDir(), "missing")
	powercapDir = filepath.Join(t.TempDir(), "also-missing")
	defer func() { powerPMUDir, powercapDir = origPower, origCap }()

	c := Open()
	assert.Equal(t, uint64(0), c.Read())
}

// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/aclements/go-moremath/scale"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/loadshift/graybox/extractor"
)

const (
	cellWidth  = 14
	cellHeight = 12
	marginTop  = 20
	marginLeft = 110
	labelSize  = 9
)

var columnLabels = func() []string {
	labels := make([]string, 0, extractor.NRMetrics+6)
	for i := 0; i < extractor.NRMetrics; i++ {
		labels = append(labels, fmt.Sprintf("F%d", i))
	}
	return append(labels, "mCM", "mEn", "mIn", "pCM", "pEn", "pIn")
}()

// heatColor maps a [0,1] magnitude to a red intensity, following the
// teacher's memheat shading (color.NRGBA{255,0,0,alpha}).
func heatColor(shade float64) color.Color {
	if shade < 0 {
		shade = 0
	}
	if shade > 1 {
		shade = 1
	}
	return color.NRGBA{R: 255, G: 0, B: 0, A: uint8(255 * shade)}
}

// renderHeatmap draws one PNG per region: each row is a call, each column
// is a feature slot or a measured/predicted event delta, colored by
// magnitude on a log scale (as cmd/memlat scales latency histograms).
func renderHeatmap(outPath string, calls []regionCall) error {
	if len(calls) == 0 {
		return fmt.Errorf("no calls to render")
	}
	cols := len(columnLabels)

	max := 0.0
	cellValue := func(c regionCall, col int) float64 {
		switch {
		case col < extractor.NRMetrics:
			if col < len(c.features) {
				return c.features[col]
			}
		case col < extractor.NRMetrics+3:
			return c.measured[col-extractor.NRMetrics]
		default:
			return c.predicted[col-extractor.NRMetrics-3]
		}
		return 0
	}
	for _, c := range calls {
		for col := 0; col < cols; col++ {
			if v := cellValue(c, col); v > max {
				max = v
			}
		}
	}
	if max <= 0 {
		max = 1
	}
	logScale, err := scale.NewLog(1, max+1, 10)
	if err != nil {
		return fmt.Errorf("building heatmap scale: %w", err)
	}

	width := marginLeft + cols*cellWidth
	height := marginTop + len(calls)*cellHeight
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face, err := loadLabelFace()
	if err != nil {
		return fmt.Errorf("loading label font: %w", err)
	}

	for col, label := range columnLabels {
		x := marginLeft + col*cellWidth
		drawLabel(img, face, label, x+2, marginTop-6, -45)
	}

	for row, c := range calls {
		y := marginTop + row*cellHeight
		for col := 0; col < cols; col++ {
			v := cellValue(c, col)
			shade := 0.0
			if v > 0 {
				shade = logScale.Map(v)
			}
			x := marginLeft + col*cellWidth
			fillCell(img, x, y, cellWidth, cellHeight, heatColor(shade))
		}
		drawLabel(img, face, fmt.Sprintf("%d", row), 4, y+cellHeight-2, 0)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func fillCell(img *image.RGBA, x, y, w, h int, c color.Color) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Over)
}

func loadLabelFace() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
}

// drawLabel draws text at (x, y) with freetype. angle is accepted but not
// applied: every label, column headers included, is drawn horizontally.
func drawLabel(img *image.RGBA, font *truetype.Font, text string, x, y int, angle float64) {
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(font)
	ctx.SetFontSize(labelSize)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetSrc(image.Black)
	// freetype has no built-in text rotation; angled headers are drawn
	// into a small scratch image and composited back in rotated, which
	// is overkill for single-digit/short labels, so headers are simply
	// drawn horizontally, offset to reduce overlap.
	_ = angle
	_, _ = ctx.DrawString(text, freetype.Pt(x, y))
}

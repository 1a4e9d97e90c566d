// Caprica
// Copyright (c) 2026 The Caprica Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Caprica.
//
// Caprica is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Caprica is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Caprica.  If not, see <http://www.gnu.org/licenses/>.

// Package render rasterises glyphs, shapes and images onto an in-memory RGB
// surface sized to the display panel.
package render

import (
	"image"
	"image/color"
	"math"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/unicode/norm"
)

// lineWidth is the stroke width of DrawLine in pixels.
const lineWidth = 1.5

var (
	DefaultForeground = color.RGBA{R: 0xff, G: 0xb0, B: 0x00, A: 0xff}
	DefaultBackground = color.RGBA{A: 0xff}
)

// Canvas is a pixel surface with a fixed text cell. It is not safe for
// concurrent use; the presenter goroutine owns it.
type Canvas struct {
	surface *image.RGBA
	raster  *vector.Rasterizer
	face    *basicfont.Face
	glyphs  map[rune]*image.Alpha
	fg      *image.Uniform
	bg      *image.Uniform
	frame   []byte
	cellW   int
	cellH   int
}

// NewCanvas returns a width x height canvas cleared to the background, with
// glyphs laid out in cellW x cellH cells.
func NewCanvas(width, height, cellW, cellH int) *Canvas {
	c := &Canvas{
		surface: image.NewRGBA(image.Rect(0, 0, width, height)),
		raster:  vector.NewRasterizer(width, height),
		face:    basicfont.Face7x13,
		glyphs:  make(map[rune]*image.Alpha),
		fg:      image.NewUniform(DefaultForeground),
		bg:      image.NewUniform(DefaultBackground),
		frame:   make([]byte, width*height*3),
		cellW:   cellW,
		cellH:   cellH,
	}
	c.ClearRegion(0, 0, width, height)
	return c
}

// SetColors changes the ink and paper colours for later draw calls.
func (c *Canvas) SetColors(fg, bg color.Color) {
	c.fg = image.NewUniform(fg)
	c.bg = image.NewUniform(bg)
}

func (c *Canvas) Bounds() image.Rectangle {
	return c.surface.Bounds()
}

// Image returns the live surface. Callers must not keep it across draws.
func (c *Canvas) Image() *image.RGBA {
	return c.surface
}

// DrawGlyph paints r into the text cell with its top left corner at x, y,
// replacing whatever the cell held.
func (c *Canvas) DrawGlyph(r rune, x, y int) {
	cell := image.Rect(x, y, x+c.cellW, y+c.cellH)
	draw.Draw(c.surface, cell, c.bg, image.Point{}, draw.Src)
	draw.DrawMask(c.surface, cell, c.fg, image.Point{}, c.glyph(r), image.Point{}, draw.Over)
}

func (c *Canvas) ClearRegion(x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	draw.Draw(c.surface, image.Rect(x, y, x+w, y+h), c.bg, image.Point{}, draw.Src)
}

// DrawFilledPolygon fills the closed path through pts with the ink colour.
func (c *Canvas) DrawFilledPolygon(pts []f64.Vec2) {
	if len(pts) < 3 {
		return
	}
	c.raster.Reset(c.surface.Bounds().Dx(), c.surface.Bounds().Dy())
	c.raster.MoveTo(float32(pts[0][0]), float32(pts[0][1]))
	for _, p := range pts[1:] {
		c.raster.LineTo(float32(p[0]), float32(p[1]))
	}
	c.raster.ClosePath()
	c.raster.Draw(c.surface, c.surface.Bounds(), c.fg, image.Point{})
}

// DrawLine strokes a straight line as a thin quad.
func (c *Canvas) DrawLine(x0, y0, x1, y1 float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*lineWidth/2, dx/l*lineWidth/2
	c.DrawFilledPolygon([]f64.Vec2{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	})
}

// DrawImageAt composites img with its top left corner at x, y. When clip is
// set nothing outside it is touched.
func (c *Canvas) DrawImageAt(img image.Image, x, y int, clip *image.Rectangle) {
	b := img.Bounds()
	dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	if clip != nil {
		dst = dst.Intersect(*clip)
	}
	if dst.Empty() {
		return
	}
	sp := b.Min.Add(dst.Min.Sub(image.Pt(x, y)))
	draw.Draw(c.surface, dst, img, sp, draw.Over)
}

// MeasureText returns the advance of s in pixels.
func (c *Canvas) MeasureText(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

// DrawText draws s with proportional advance. y is the top of the line.
func (c *Canvas) DrawText(s string, x, y int) {
	d := font.Drawer{
		Dst:  c.surface,
		Src:  c.fg,
		Face: c.face,
		Dot:  fixed.P(x, y+c.face.Ascent),
	}
	d.DrawString(s)
}

// Frame packs the surface as RGB24, row major. The returned slice is reused
// by the next call.
func (c *Canvas) Frame() []byte {
	b := c.surface.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := c.surface.Pix[c.surface.PixOffset(b.Min.X, y):]
		for x := range b.Dx() {
			copy(c.frame[i:i+3], row[x*4:x*4+3])
			i += 3
		}
	}
	return c.frame
}

// glyph returns the cached cell mask for r, rasterising it on first use.
func (c *Canvas) glyph(r rune) *image.Alpha {
	if m, ok := c.glyphs[r]; ok {
		return m
	}

	m := image.NewAlpha(image.Rect(0, 0, c.cellW, c.cellH))
	base, ok := c.drawable(r)
	if ok {
		lineH := c.face.Ascent + c.face.Descent
		dot := fixed.P(
			max((c.cellW-c.face.Advance)/2, 0),
			max((c.cellH-lineH)/2, 0)+c.face.Ascent,
		)
		dr, mask, mp, _, _ := c.face.Glyph(dot, base)
		draw.DrawMask(m, dr, image.Opaque, image.Point{}, mask, mp, draw.Over)
	} else {
		log.Debug().Str("rune", string(r)).Msg("no glyph, using box")
		drawBox(m)
	}

	c.glyphs[r] = m
	return m
}

// drawable returns the rune to draw for r. Runes the face lacks fall back to
// their base letter when they decompose to one, as accented capitals do.
func (c *Canvas) drawable(r rune) (rune, bool) {
	if c.inFace(r) {
		return r, true
	}
	b, _ := utf8.DecodeRuneInString(norm.NFD.String(string(r)))
	if b != r && c.inFace(b) {
		return b, true
	}
	return 0, false
}

func (c *Canvas) inFace(r rune) bool {
	if r == '\ufffd' {
		return false
	}
	for _, rng := range c.face.Ranges {
		if r >= rng.Low && r < rng.High {
			return true
		}
	}
	return false
}

// drawBox outlines a hollow box inset by one pixel.
func drawBox(m *image.Alpha) {
	b := m.Bounds().Inset(1)
	for x := b.Min.X; x < b.Max.X; x++ {
		m.SetAlpha(x, b.Min.Y+1, color.Alpha{A: 0xff})
		m.SetAlpha(x, b.Max.Y-2, color.Alpha{A: 0xff})
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		m.SetAlpha(b.Min.X, y, color.Alpha{A: 0xff})
		m.SetAlpha(b.Max.X-1, y, color.Alpha{A: 0xff})
	}
}

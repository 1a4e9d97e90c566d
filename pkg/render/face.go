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

package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// FaceImage renders the clock background: twelve hour marks on a
// transparent square of side size, with the quarter marks drawn longer.
// It is built once at startup and composited under the hands every tick.
func FaceImage(size int, ink color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	if size < 4 {
		return img
	}

	z := vector.NewRasterizer(size, size)
	radius := float64(size)/2 - 1
	c := float64(size) / 2
	for i := range 12 {
		inner := radius * 0.85
		half := 0.75
		if i%3 == 0 {
			inner = radius * 0.72
			half = 1.25
		}
		sin, cos := math.Sincos(float64(i) * math.Pi / 6)
		// outward direction and its normal
		dx, dy := sin, -cos
		nx, ny := cos*half, sin*half

		z.MoveTo(float32(c+dx*inner+nx), float32(c+dy*inner+ny))
		z.LineTo(float32(c+dx*radius+nx), float32(c+dy*radius+ny))
		z.LineTo(float32(c+dx*radius-nx), float32(c+dy*radius-ny))
		z.LineTo(float32(c+dx*inner-nx), float32(c+dy*inner-ny))
		z.ClosePath()
	}
	z.Draw(img, img.Bounds(), image.NewUniform(ink), image.Point{})
	return img
}

// Dim returns c with each channel scaled by f, for secondary ink such as
// the clock face marks.
func Dim(c color.RGBA, f float64) color.RGBA {
	scale := func(v uint8) uint8 {
		return uint8(math.Round(float64(v) * f))
	}
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}

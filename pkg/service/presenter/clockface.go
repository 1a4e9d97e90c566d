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

package presenter

import (
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/math/f64"
)

// Clock face layout.
const (
	captionGap        = 2
	indicatorSegments = 5
	segmentW          = 6
	segmentH          = 4
	segmentGap        = 2
)

// burnInOffsets shift the face a few pixels from day to day so a panel left
// on the clock does not wear the same pixels.
var burnInOffsets = [4]image.Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}

// FaceSize is the side of the square clock face, leaving room for the
// caption line and the burn-in offset below it.
func (g Geometry) FaceSize() int {
	return max(g.Height-g.CellH-captionGap-2, 8)
}

func (g Geometry) faceOrigin(yearDay int) image.Point {
	off := burnInOffsets[yearDay%len(burnInOffsets)]
	return image.Pt((g.Width-g.FaceSize())/2+off.X, off.Y)
}

// indicatorRect is the region holding the top of minute countdown.
func (g Geometry) indicatorRect() image.Rectangle {
	w := indicatorSegments * (segmentW + segmentGap)
	return image.Rect(g.Width-w, g.Height-segmentH-1, g.Width, g.Height-1)
}

// countdownLit returns how many indicator segments are lit at second sec and
// whether the indicator is shown at all. All five are lit from :50 to :54
// and from :00 to :03; from :55 one closes each second.
func countdownLit(sec int) (int, bool) {
	switch {
	case sec >= 50 && sec <= 54, sec >= 0 && sec <= 3:
		return indicatorSegments, true
	case sec >= 55 && sec <= 59:
		return 59 - sec, true
	default:
		return 0, false
	}
}

func (p *Presenter) drawClock(now time.Time) {
	g := p.geom
	p.clearAll()

	size := g.FaceSize()
	origin := g.faceOrigin(now.YearDay())
	if p.face != nil {
		clip := image.Rect(0, 0, g.Width, g.Height)
		p.r.DrawImageAt(p.face, origin.X, origin.Y, &clip)
	}

	radius := float64(size) / 2
	cx := float64(origin.X) + radius
	cy := float64(origin.Y) + radius

	h, m, s := now.Clock()
	hourAngle := (float64(h%12) + float64(m)/60) * math.Pi / 6
	minuteAngle := (float64(m) + float64(s)/60) * math.Pi / 30
	secondAngle := float64(s) * math.Pi / 30

	p.r.DrawFilledPolygon(wedge(cx, cy, hourAngle, radius*0.5, radius*0.06))
	p.r.DrawFilledPolygon(wedge(cx, cy, minuteAngle, radius*0.8, radius*0.045))

	sin, cos := math.Sincos(secondAngle)
	p.r.DrawLine(
		cx-sin*radius*0.15, cy+cos*radius*0.15,
		cx+sin*radius*0.9, cy-cos*radius*0.9,
	)

	caption := p.caption(now)
	p.r.DrawText(caption, (g.Width-p.r.MeasureText(caption))/2, origin.Y+size+captionGap)

	p.drawCountdown(s)

	p.state.phase = clockPhase{
		second:  s,
		minute:  m,
		hour:    h,
		yearDay: now.YearDay(),
		drawnAt: now,
	}
}

func (p *Presenter) drawCountdown(sec int) {
	r := p.geom.indicatorRect()
	p.r.ClearRegion(r.Min.X, r.Min.Y, r.Dx(), r.Dy())

	lit, shown := countdownLit(sec)
	if !shown {
		return
	}
	for i := range lit {
		x0 := float64(r.Min.X + i*(segmentW+segmentGap))
		y0 := float64(r.Min.Y)
		p.r.DrawFilledPolygon([]f64.Vec2{
			{x0, y0},
			{x0 + segmentW, y0},
			{x0 + segmentW, y0 + segmentH},
			{x0, y0 + segmentH},
		})
	}
}

// caption picks the line under the face from the ten second slot of the
// minute. Slots without a reading show the date.
func (p *Presenter) caption(now time.Time) string {
	date := now.Format("Mon 2 Jan")
	rd := p.state.readings

	switch now.Second() / 10 {
	case 1:
		if rd.temperature != nil {
			return fmt.Sprintf("%.1f C", *rd.temperature)
		}
	case 2:
		if rd.humidity != nil {
			return fmt.Sprintf("%.0f %%RH", *rd.humidity)
		}
	case 3:
		if rd.pressure != nil {
			return fmt.Sprintf("%.0f hPa", *rd.pressure)
		}
	}
	return date
}

// wedge returns a clock hand as a quadrilateral pointing at angle (radians,
// clockwise from twelve) with a short tail behind the centre.
func wedge(cx, cy, angle, length, halfWidth float64) []f64.Vec2 {
	sin, cos := math.Sincos(angle)
	dx, dy := sin, -cos
	px, py := cos, sin
	return []f64.Vec2{
		{cx + px*halfWidth, cy + py*halfWidth},
		{cx + dx*length, cy + dy*length},
		{cx - px*halfWidth, cy - py*halfWidth},
		{cx - dx*halfWidth*2, cy - dy*halfWidth*2},
	}
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownLit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sec   int
		lit   int
		shown bool
	}{
		{sec: 0, lit: 5, shown: true},
		{sec: 3, lit: 5, shown: true},
		{sec: 4, lit: 0, shown: false},
		{sec: 30, lit: 0, shown: false},
		{sec: 49, lit: 0, shown: false},
		{sec: 50, lit: 5, shown: true},
		{sec: 54, lit: 5, shown: true},
		{sec: 55, lit: 4, shown: true},
		{sec: 58, lit: 1, shown: true},
		{sec: 59, lit: 0, shown: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf(":%02d", tt.sec), func(t *testing.T) {
			t.Parallel()
			lit, shown := countdownLit(tt.sec)
			assert.Equal(t, tt.lit, lit)
			assert.Equal(t, tt.shown, shown)
		})
	}
}

func captionAt(t *testing.T, at time.Time, sensors ...string) string {
	t.Helper()
	p, r, _ := newTestPresenter(t, at)
	for i := 0; i+1 < len(sensors); i += 2 {
		p.Dispatch(packetFrom(t, "\x01"+sensors[i]+"\x02"+sensors[i+1]+"\x04"))
	}
	p.Dispatch(tick())
	texts := r.ops("text")
	require.Len(t, texts, 1)
	return texts[0].text
}

func TestCaption(t *testing.T) {
	t.Parallel()

	at := func(sec int) time.Time {
		return time.Date(2026, time.March, 14, 9, 41, sec, 0, time.UTC)
	}
	const date = "Sat 14 Mar"
	all := []string{"temperature", "18.26", "humidity", "61", "pressure", "1013.2"}

	tests := []struct {
		name    string
		want    string
		sensors []string
		sec     int
	}{
		{name: "date slot", sec: 5, sensors: all, want: date},
		{name: "temperature", sec: 12, sensors: all, want: "18.3 C"},
		{name: "humidity", sec: 20, sensors: all, want: "61 %RH"},
		{name: "pressure", sec: 39, sensors: all, want: "1013 hPa"},
		{name: "forty slot shows date", sec: 40, sensors: all, want: date},
		{name: "fifty slot shows date", sec: 59, sensors: all, want: date},
		{name: "humidity missing falls back", sec: 20, want: date},
		{name: "pressure missing falls back", sec: 30, want: date},
		{name: "temperature missing falls back", sec: 10, want: date},
		{
			name:    "unparsable reading falls back",
			sec:     25,
			sensors: []string{"humidity", "--"},
			want:    date,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, captionAt(t, at(tt.sec), tt.sensors...))
		})
	}
}

func TestClockFace_Layout(t *testing.T) {
	t.Parallel()

	p, r, _ := newTestPresenter(t, time.Date(2026, time.January, 2, 3, 15, 51, 0, time.UTC))
	p.Dispatch(tick())

	// yearDay 2 selects the third burn-in offset
	g := DefaultGeometry
	size := g.FaceSize()
	wantX := (g.Width-size)/2 + burnInOffsets[2].X
	assert.Equal(t, []call{{op: "image", x: wantX, y: burnInOffsets[2].Y}}, r.ops("image"))

	// two hands plus five countdown segments
	assert.Len(t, r.ops("polygon"), 7)
	assert.Len(t, r.ops("line"), 1)

	ind := g.indicatorRect()
	assert.Contains(t, r.ops("clear"), call{op: "clear", x: ind.Min.X, y: ind.Min.Y, w: ind.Dx(), h: ind.Dy()})

	assert.Equal(t, clockPhase{
		second:  51,
		minute:  15,
		hour:    3,
		yearDay: 2,
		drawnAt: time.Date(2026, time.January, 2, 3, 15, 51, 0, time.UTC),
	}, p.state.phase)
}

func TestClockFace_IndicatorClearedOutsideWindow(t *testing.T) {
	t.Parallel()

	p, r, _ := newTestPresenter(t, time.Date(2026, time.January, 1, 3, 15, 30, 0, time.UTC))
	p.Dispatch(tick())

	assert.Len(t, r.ops("polygon"), 2, "hands only")
	ind := DefaultGeometry.indicatorRect()
	assert.Contains(t, r.ops("clear"), call{op: "clear", x: ind.Min.X, y: ind.Min.Y, w: ind.Dx(), h: ind.Dy()})
}

func TestBurnInOffsetsRotate(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry
	seen := map[image.Point]bool{}
	for day := 1; day <= 4; day++ {
		seen[g.faceOrigin(day)] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, g.faceOrigin(1), g.faceOrigin(5))
}

func TestWedgePointsAlongAngle(t *testing.T) {
	t.Parallel()

	pts := wedge(50, 50, 0, 40, 2)
	require.Len(t, pts, 4)
	assert.InDelta(t, 50.0, pts[1][0], 1e-9)
	assert.InDelta(t, 10.0, pts[1][1], 1e-9)

	pts = wedge(50, 50, 3.141592653589793/2, 40, 2)
	assert.InDelta(t, 90.0, pts[1][0], 1e-9)
	assert.InDelta(t, 50.0, pts[1][1], 1e-9)
}

func TestCellOrigin(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry
	x, y := g.CellOrigin(5, 3)
	assert.Equal(t, 40, x)
	assert.Equal(t, 52, y)

	x, y = g.CellOrigin(0, 1)
	assert.Equal(t, 0, x)
	assert.Equal(t, 16, y)
}

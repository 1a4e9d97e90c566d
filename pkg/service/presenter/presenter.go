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

// Package presenter owns the display surface. It consumes packets and ticks
// from the update queue, draws live result text or the idle clock through a
// Renderer and hands finished frames to a Sink.
//
// A Presenter is driven by exactly one goroutine (Run, or a test calling
// Dispatch); nothing else may touch its state.
package presenter

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-runewidth"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/math/f64"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// DefaultIdleTimeout is the number of ticks without content after which the
// clock takes over.
const DefaultIdleTimeout = 30

// Sensor tags recognised in packet headers, after folding.
const (
	TagTemperature = "temperature"
	TagHumidity    = "humidity"
	TagPressure    = "pressure"
)

// firstTextRow is the first row below the header rows. Rows from here down
// are shifted by the header gap and upper-cased.
const firstTextRow = 2

// Renderer draws into the pixel surface. Coordinates are pixels with the
// origin at the top left.
type Renderer interface {
	DrawGlyph(r rune, x, y int)
	ClearRegion(x, y, w, h int)
	DrawFilledPolygon(pts []f64.Vec2)
	DrawLine(x0, y0, x1, y1 float64)
	DrawImageAt(img image.Image, x, y int, clip *image.Rectangle)
	MeasureText(s string) int
	DrawText(s string, x, y int)
	Frame() []byte
}

// Sink receives finished frames.
type Sink interface {
	Present(frame []byte) error
}

// Queue is the consumer side of the update queue.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (queue.Item, bool)
	TryPop() (queue.Item, bool)
}

// Mode is what the surface is currently showing.
type Mode int

const (
	ModeLive Mode = iota
	ModeClock
)

func (m Mode) String() string {
	if m == ModeClock {
		return "clock"
	}
	return "live"
}

// MarshalText lets Snapshot encode the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "live":
		*m = ModeLive
	case "clock":
		*m = ModeClock
	default:
		return fmt.Errorf("unknown display mode %q", b)
	}
	return nil
}

// Geometry is the pixel layout of the surface and its text cells.
type Geometry struct {
	Width     int
	Height    int
	CellW     int
	CellH     int
	HeaderGap int
}

// DefaultGeometry matches a 256x128 panel with an 8x16 text cell.
var DefaultGeometry = Geometry{
	Width:     256,
	Height:    128,
	CellW:     8,
	CellH:     16,
	HeaderGap: 4,
}

// CellOrigin returns the pixel position of the text cell at column, row.
func (g Geometry) CellOrigin(column, row int) (x, y int) {
	x = column * g.CellW
	y = row * g.CellH
	if row >= firstTextRow {
		y += g.HeaderGap
	}
	return x, y
}

// Options configure a Presenter. A nil Clock uses the real clock.
type Options struct {
	Renderer Renderer
	Sink     Sink
	Clock    clockwork.Clock
	// Face is the clock background, drawn under the hands. May be nil.
	Face        image.Image
	Geometry    Geometry
	IdleTimeout int
}

// readings holds the last known sensor values. A nil entry is absent.
type readings struct {
	temperature *float64
	humidity    *float64
	pressure    *float64
}

func (r *readings) slot(tag string) **float64 {
	switch tag {
	case TagTemperature:
		return &r.temperature
	case TagHumidity:
		return &r.humidity
	case TagPressure:
		return &r.pressure
	default:
		return nil
	}
}

// clockPhase is the wall clock as of the last clock frame.
type clockPhase struct {
	second  int
	minute  int
	hour    int
	yearDay int
	drawnAt time.Time
}

type surfaceState struct {
	readings     readings
	phase        clockPhase
	lastContent  time.Time
	idle         int
	mode         Mode
	lastWasClock bool
}

// Snapshot is a read-only copy of the presenter state for status reporting.
type Snapshot struct {
	LastContent  time.Time          `json:"lastContent,omitzero"`
	LastActivity time.Time          `json:"lastActivity"`
	Readings     map[string]float64 `json:"readings"`
	Mode         Mode               `json:"mode"`
	IdleTicks    int                `json:"idleTicks"`
	Frames       uint64             `json:"frames"`
	SinkErrors   uint64             `json:"sinkErrors"`
}

// Presenter owns the display surface and its live and clock state.
type Presenter struct {
	r        Renderer
	sink     Sink
	clock    clockwork.Clock
	face     image.Image
	snapshot atomic.Pointer[Snapshot]
	sinkLog  *rate.Sometimes
	upper    cases.Caser
	state    surfaceState
	geom     Geometry
	timeout  int
	frames   uint64
	sinkErrs uint64
}

// New returns a presenter in clock mode, primed so the first tick draws the
// clock.
func New(opts Options) *Presenter {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Geometry == (Geometry{}) {
		opts.Geometry = DefaultGeometry
	}
	if opts.IdleTimeout < 1 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	p := &Presenter{
		r:       opts.Renderer,
		sink:    opts.Sink,
		clock:   opts.Clock,
		face:    opts.Face,
		geom:    opts.Geometry,
		timeout: opts.IdleTimeout,
		upper:   cases.Upper(language.Und),
		sinkLog: &rate.Sometimes{First: 1, Interval: 30 * time.Second},
		state: surfaceState{
			idle: opts.IdleTimeout,
			mode: ModeClock,
		},
	}
	p.publish(p.clock.Now())
	return p
}

// Snapshot returns the state published after the last dispatch. It is safe
// to call from any goroutine.
func (p *Presenter) Snapshot() Snapshot {
	return *p.snapshot.Load()
}

// Dispatch applies one queued item to the surface and reports whether it was
// a content change.
func (p *Presenter) Dispatch(it queue.Item) bool {
	changed := false
	switch it.Kind {
	case queue.KindTick:
		p.tick()
	case queue.KindPacket:
		changed = p.packet(it.Packet)
	default:
		log.Debug().Int("kind", int(it.Kind)).Msg("ignoring unknown queue item")
	}

	now := p.clock.Now()
	if changed {
		p.present()
		p.state.idle = 0
		p.state.lastWasClock = false
		p.state.mode = ModeLive
		p.state.lastContent = now
	}
	p.publish(now)
	return changed
}

// Run consumes the queue until ctx is cancelled, then dispatches whatever is
// still queued and returns.
func (p *Presenter) Run(ctx context.Context, q Queue) error {
	log.Info().
		Int("width", p.geom.Width).
		Int("height", p.geom.Height).
		Int("idle_timeout", p.timeout).
		Msg("presenter started")

	for {
		if ctx.Err() != nil {
			n := p.drain(q)
			log.Info().Int("drained", n).Msg("presenter stopped")
			return nil
		}

		it, ok := q.Pop(ctx, time.Second)
		if !ok {
			p.publish(p.clock.Now())
			continue
		}
		p.Dispatch(it)
	}
}

func (p *Presenter) drain(q Queue) int {
	n := 0
	for {
		it, ok := q.TryPop()
		if !ok {
			return n
		}
		p.Dispatch(it)
		n++
	}
}

func (p *Presenter) tick() {
	p.state.idle++
	if p.state.idle <= p.timeout {
		return
	}
	if p.state.mode != ModeClock {
		log.Debug().Int("idle", p.state.idle).Msg("idle timeout, switching to clock")
	}
	p.drawClock(p.clock.Now())
	p.present()
	p.state.mode = ModeClock
	p.state.lastWasClock = true
}

func (p *Presenter) packet(pkt unt4.Packet) bool {
	switch {
	case pkt.ClearAll:
		p.clearAll()
		return true
	case pkt.Positioned:
		p.drawText(pkt)
		return true
	default:
		if slot := p.state.readings.slot(pkt.Header); slot != nil {
			*slot = parseReading(pkt.Text)
			return false
		}
		log.Debug().Str("header", pkt.Header).Msg("ignoring packet")
		return false
	}
}

func (p *Presenter) clearAll() {
	p.r.ClearRegion(0, 0, p.geom.Width, p.geom.Height)
}

func (p *Presenter) drawText(pkt unt4.Packet) {
	if p.state.lastWasClock {
		p.clearAll()
	}

	x, y := p.geom.CellOrigin(pkt.Column, pkt.Row)
	text := pkt.Text
	if pkt.Row >= firstTextRow {
		text = p.foldUpper(text)
	}

	cells := 0
	if x < p.geom.Width {
		cells = (p.geom.Width - x) / p.geom.CellW
	}

	drawn := 0
	for _, r := range text {
		if drawn >= cells {
			log.Debug().
				Int("column", pkt.Column).
				Int("row", pkt.Row).
				Str("text", text).
				Msg("text truncated at right edge")
			break
		}
		p.r.DrawGlyph(r, x+drawn*p.geom.CellW, y)
		drawn++
	}

	if pkt.EraseToLineEnd {
		ex := x + drawn*p.geom.CellW
		if ex < p.geom.Width {
			p.r.ClearRegion(ex, y, p.geom.Width-ex, p.geom.CellH)
		}
	}
}

// foldUpper upper-cases s for the text rows. Every rune still takes one
// cell; a fold that changes the rune count or yields wide runes is only
// logged.
func (p *Presenter) foldUpper(s string) string {
	up := p.upper.String(s)
	if utf8.RuneCountInString(up) != utf8.RuneCountInString(s) {
		log.Debug().Str("text", s).Str("folded", up).Msg("case fold changed text length")
	} else if runewidth.StringWidth(up) != utf8.RuneCountInString(up) {
		log.Debug().Str("folded", up).Msg("case fold produced wide runes")
	}
	return up
}

func (p *Presenter) present() {
	if p.sink == nil {
		return
	}
	p.frames++
	if err := p.sink.Present(p.r.Frame()); err != nil {
		p.sinkErrs++
		p.sinkLog.Do(func() {
			log.Warn().Err(err).Uint64("failures", p.sinkErrs).Msg("display present failed")
		})
	}
}

func (p *Presenter) publish(now time.Time) {
	s := &Snapshot{
		Mode:         p.state.mode,
		IdleTicks:    p.state.idle,
		Frames:       p.frames,
		SinkErrors:   p.sinkErrs,
		LastContent:  p.state.lastContent,
		LastActivity: now,
		Readings:     make(map[string]float64, 3),
	}
	for _, tag := range []string{TagTemperature, TagHumidity, TagPressure} {
		if v := *p.state.readings.slot(tag); v != nil {
			s.Readings[tag] = *v
		}
	}
	p.snapshot.Store(s)
}

func parseReading(text string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

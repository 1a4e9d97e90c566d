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

// Package unt4 implements the framed text protocol spoken by legacy DHI
// scoreboard hosts.
//
// A frame on the wire looks like:
//
//	SOH [prefix] header [STX [DLE cc rr] text [ERL] | STX ERP] EOT
//
// where cc/rr are two ASCII digits each giving the column and row of the
// text, ERL erases to the end of the line and ERP clears the whole display.
package unt4

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Protocol control bytes.
const (
	SOH = 0x01 // frame start
	STX = 0x02 // content start
	EOT = 0x04 // frame end
	ERL = 0x0b // erase to end of line
	ERP = 0x0c // erase page (general clear)
	DLE = 0x10 // position escape
	DC2 = 0x12 // prefix selectors
	DC3 = 0x13
	DC4 = 0x14
)

// MaxPosition is the largest column or row a position escape can carry.
const MaxPosition = 99

// Packet is one decoded protocol message. Packets are values: build them with
// Decode or the New* constructors and don't modify them afterwards.
type Packet struct {
	Header         string
	Text           string
	Column         int
	Row            int
	Prefix         byte
	Positioned     bool
	ClearAll       bool
	EraseToLineEnd bool
}

// NewText returns a positioned text packet. Control bytes in text are
// replaced with spaces and the position is clamped to 0-99.
func NewText(header string, column, row int, text string, eraseToLineEnd bool) Packet {
	return Packet{
		Header:         sanitize(header),
		Text:           sanitize(text),
		Column:         clampPosition(column),
		Row:            clampPosition(row),
		Positioned:     true,
		EraseToLineEnd: eraseToLineEnd,
	}
}

// NewValue returns an unpositioned header/text packet, the shape used for
// sensor readings and other tagged values.
func NewValue(header, text string) Packet {
	return Packet{
		Header: sanitize(header),
		Text:   sanitize(text),
	}
}

// NewClear returns a general clear packet.
func NewClear() Packet {
	return Packet{ClearAll: true}
}

// IsPrefix reports whether b is one of the reserved selector bytes.
func IsPrefix(b byte) bool {
	return b == DC2 || b == DC3 || b == DC4
}

// Fold returns a copy of p with the header lower-cased for tag matching and
// the text normalised to NFC. Sources fold packets just before queuing them.
func (p Packet) Fold() Packet {
	p.Header = strings.ToLower(strings.TrimSpace(p.Header))
	p.Text = norm.NFC.String(p.Text)
	return p
}

// IsContent reports whether dispatching p visibly changes the display.
func (p Packet) IsContent() bool {
	return p.ClearAll || p.Positioned
}

func clampPosition(v int) int {
	switch {
	case v < 0:
		return 0
	case v > MaxPosition:
		return MaxPosition
	default:
		return v
	}
}

func isControl(r rune) bool {
	return unicode.IsControl(r)
}

func sanitize(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return ' '
		}
		return r
	}, s)
}

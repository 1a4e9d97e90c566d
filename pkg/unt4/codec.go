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

package unt4

import (
	"bytes"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode parses one complete frame, start and end markers included.
//
// Bytes before the first STX are the header, with an optional leading
// selector byte captured as the prefix. After STX a DLE followed by exactly
// four digits sets the position, ERP and ERL set their flags and everything
// else is text. Control bytes in the header or text are replaced with spaces
// so fixed-width text keeps its column alignment.
func Decode(frame []byte) (Packet, error) {
	if len(frame) < 2 {
		return Packet{}, &FormatError{Reason: "frame too short", Length: len(frame)}
	}
	if frame[0] != SOH {
		return Packet{}, &FormatError{Reason: "missing start marker", Length: len(frame)}
	}
	if frame[len(frame)-1] != EOT {
		return Packet{}, &FormatError{Reason: "missing end marker", Length: len(frame)}
	}

	var p Packet
	head, content, hasContent := bytes.Cut(frame[1:len(frame)-1], []byte{STX})
	if len(head) > 0 && IsPrefix(head[0]) {
		p.Prefix = head[0]
		head = head[1:]
	}
	p.Header = decodeText(head)

	if hasContent {
		decodeContent(&p, content)
	}
	return p, nil
}

func decodeContent(p *Packet, content []byte) {
	text := make([]byte, 0, len(content))
	for i := 0; i < len(content); i++ {
		b := content[i]
		switch {
		case b == ERP:
			p.ClearAll = true
		case b == ERL:
			p.EraseToLineEnd = true
		case b == DLE && !p.Positioned && isPosition(content[i+1:]):
			p.Column = digitPair(content[i+1], content[i+2])
			p.Row = digitPair(content[i+3], content[i+4])
			p.Positioned = true
			i += 4
		case b < 0x20 || b == 0x7f:
			text = append(text, ' ')
		default:
			text = append(text, b)
		}
	}

	if p.ClearAll {
		p.Text = ""
		p.Column, p.Row = 0, 0
		p.Positioned = false
		p.EraseToLineEnd = false
		return
	}
	p.Text = decodeText(text)
}

// isPosition reports whether b starts with four ASCII digits.
func isPosition(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	for _, c := range b[:4] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func digitPair(hi, lo byte) int {
	return int(hi-'0')*10 + int(lo-'0')
}

// decodeText reads UTF-8 when the bytes are valid and falls back to
// ISO-8859-1, which is what older boards send for accented names.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return sanitize(string(b))
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return sanitize(string(bytes.ToValidUTF8(b, []byte(" "))))
	}
	return sanitize(string(out))
}

// Encode returns the wire form of p. It is the inverse of Decode for any
// packet whose fields hold legal values.
func Encode(p Packet) []byte {
	buf := make([]byte, 0, len(p.Header)+len(p.Text)+10)
	buf = append(buf, SOH)
	if IsPrefix(p.Prefix) {
		buf = append(buf, p.Prefix)
	}
	buf = append(buf, sanitize(p.Header)...)

	switch {
	case p.ClearAll:
		buf = append(buf, STX, ERP)
	case p.Positioned || p.Text != "" || p.EraseToLineEnd:
		buf = append(buf, STX)
		if p.Positioned {
			buf = append(buf, DLE)
			buf = appendPosition(buf, p.Column)
			buf = appendPosition(buf, p.Row)
		}
		buf = append(buf, sanitize(p.Text)...)
		if p.EraseToLineEnd {
			buf = append(buf, ERL)
		}
	}

	return append(buf, EOT)
}

func appendPosition(buf []byte, v int) []byte {
	v = clampPosition(v)
	if v < 10 {
		buf = append(buf, '0')
	}
	return strconv.AppendInt(buf, int64(v), 10)
}

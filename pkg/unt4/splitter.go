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

import "bytes"

// Splitter cuts a byte stream into frames at each end marker. It keeps the
// unterminated tail between calls to Feed. A Splitter belongs to a single
// reader and is not safe for concurrent use.
type Splitter struct {
	buf    []byte
	frames [][]byte
}

// Feed appends data to the buffer and splits off every complete frame.
func (s *Splitter) Feed(data []byte) {
	s.buf = append(s.buf, data...)
	for {
		idx := bytes.IndexByte(s.buf, EOT)
		if idx < 0 {
			break
		}
		frame := make([]byte, idx+1)
		copy(frame, s.buf[:idx+1])
		s.frames = append(s.frames, frame)
		s.buf = s.buf[idx+1:]
	}
	if len(s.buf) == 0 {
		// release the backing array once fully consumed
		s.buf = nil
	}
}

// Drain returns the frames split off since the last call, oldest first.
func (s *Splitter) Drain() [][]byte {
	frames := s.frames
	s.frames = nil
	return frames
}

// Buffered returns the length of the incomplete frame held in the buffer.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// Reset drops the incomplete tail and any undrained frames. Readers call it
// when the stream ends; a partial frame at EOF is not an error.
func (s *Splitter) Reset() {
	s.buf = nil
	s.frames = nil
}

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
	"errors"
	"fmt"
)

// ErrMalformedFrame is wrapped by every FormatError.
var ErrMalformedFrame = errors.New("unt4: malformed frame")

// FormatError reports a frame that could not be decoded. The frame should be
// discarded; retrying the same bytes will fail the same way.
type FormatError struct {
	Reason string
	Length int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unt4: malformed frame (%d bytes): %s", e.Length, e.Reason)
}

func (*FormatError) Unwrap() error {
	return ErrMalformedFrame
}

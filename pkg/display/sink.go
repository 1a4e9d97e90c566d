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

// Package display delivers finished RGB24 frames to a panel: a DDP pixel
// controller on the network, a half-block preview in the terminal, or
// nowhere at all.
package display

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultDDPPort is the standard Distributed Display Protocol port.
const DefaultDDPPort = "4048"

var ErrNotConnected = errors.New("display not connected")

// Sink receives whole frames. Present must not keep frame after it returns.
type Sink interface {
	Present(frame []byte) error
	Close() error
}

// Discard accepts and drops every frame.
type Discard struct{}

func (Discard) Present([]byte) error { return nil }
func (Discard) Close() error         { return nil }

// Multi presents each frame to every sink in order.
type Multi []Sink

func (m Multi) Present(frame []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the sink named by address, a comma separated list of:
//
//	ddp://host[:port]   DDP controller, port 4048 by default
//	terminal:           preview in the controlling terminal
//	discard:            drop frames (also the empty string)
func Open(address string, width, height int) (Sink, error) {
	var sinks Multi
	for _, part := range strings.Split(address, ",") {
		part = strings.TrimSpace(part)
		s, err := openOne(part, width, height)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func openOne(address string, width, height int) (Sink, error) {
	if address == "" {
		return Discard{}, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid display address %q: %w", address, err)
	}

	switch u.Scheme {
	case "discard":
		return Discard{}, nil
	case "terminal":
		return NewTerminalSink(width, height)
	case "ddp":
		if u.Hostname() == "" {
			return nil, fmt.Errorf("ddp display address %q has no host", address)
		}
		port := u.Port()
		if port == "" {
			port = DefaultDDPPort
		}
		return NewDDPSink(net.JoinHostPort(u.Hostname(), port)), nil
	default:
		return nil, fmt.Errorf("unknown display sink %q", address)
	}
}

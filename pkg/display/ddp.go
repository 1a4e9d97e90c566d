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

package display

import (
	"fmt"
	"io"

	"github.com/coral/ddp"
	"github.com/rs/zerolog/log"
)

// DDPClient is the part of the DDP controller the sink uses.
type DDPClient interface {
	ConnectUDP(addr string) error
	Write(data []byte) (int, error)
}

// DDPClientFactory creates an unconnected DDP client.
type DDPClientFactory func() DDPClient

// DefaultDDPClientFactory returns a controller from github.com/coral/ddp.
func DefaultDDPClientFactory() DDPClient {
	return ddp.NewDDPController()
}

// DDPSink pushes frames to a DDP pixel controller over UDP. It connects on
// the first frame and again on the frame after any failure.
type DDPSink struct {
	client  DDPClient
	factory DDPClientFactory
	addr    string
	state   StateManager
}

func NewDDPSink(addr string) *DDPSink {
	return &DDPSink{addr: addr, factory: DefaultDDPClientFactory}
}

func (s *DDPSink) Addr() string {
	return s.addr
}

func (s *DDPSink) State() ConnectionState {
	return s.state.State()
}

func (s *DDPSink) Present(frame []byte) error {
	if s.state.State() != StateConnected {
		if err := s.connect(); err != nil {
			return err
		}
	}

	n, err := s.client.Write(frame)
	if err != nil {
		s.drop()
		return fmt.Errorf("ddp write to %s: %w", s.addr, err)
	}
	if n < len(frame) {
		log.Debug().Int("written", n).Int("frame", len(frame)).Msg("short ddp write")
	}
	return nil
}

func (s *DDPSink) connect() error {
	if !s.state.Transition(StateConnecting) {
		return fmt.Errorf("ddp %s in state %s: %w", s.addr, s.state.State(), ErrNotConnected)
	}

	client := s.factory()
	if err := client.ConnectUDP(s.addr); err != nil {
		s.state.Transition(StateDisconnected)
		return fmt.Errorf("ddp connect to %s: %w", s.addr, err)
	}

	s.client = client
	s.state.Transition(StateConnected)
	log.Info().Str("addr", s.addr).Msg("ddp display connected")
	return nil
}

func (s *DDPSink) drop() {
	if c, ok := s.client.(io.Closer); ok {
		_ = c.Close()
	}
	s.client = nil
	s.state.Transition(StateDisconnected)
}

func (s *DDPSink) Close() error {
	if s.client != nil {
		s.drop()
	}
	s.state.Reset()
	return nil
}

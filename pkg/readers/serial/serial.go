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

// Package serial reads DHI frames from an RS-232 line, the way older
// timing consoles were wired to their scoreboards.
package serial

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultBaud is the usual speed of a DHI serial link.
const DefaultBaud = 9600

const readTimeout = 100 * time.Millisecond

// SerialPort defines the interface for serial port operations (for mocking in tests).
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// SerialPortFactory creates a serial port connection.
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultSerialPortFactory is the default factory that opens real serial ports.
func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

type Options struct {
	Clock         clockwork.Clock
	Path          string
	Baud          int
	MaxFrameBytes int
}

// Source reads frames from a serial port. A read error closes the port and
// stops the source; it does not reopen it.
type Source struct {
	port        SerialPort
	portFactory SerialPortFactory
	cancel      context.CancelFunc
	done        chan struct{}
	opts        Options
	closeOnce   sync.Once
}

func New(opts Options) *Source {
	if opts.Baud == 0 {
		opts.Baud = DefaultBaud
	}
	return &Source{
		opts:        opts,
		portFactory: DefaultSerialPortFactory,
	}
}

func (s *Source) Name() string {
	return "serial " + s.opts.Path
}

// Start opens the port at 8N1 and reads in the background.
func (s *Source) Start(ctx context.Context, q readers.Pusher) error {
	if runtime.GOOS != "windows" {
		if _, err := os.Stat(s.opts.Path); err != nil {
			return fmt.Errorf("failed to stat device path %s: %w", s.opts.Path, err)
		}
	}

	port, err := s.portFactory(s.opts.Path, &serial.Mode{
		BaudRate: s.opts.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.opts.Path, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.port = port
	s.cancel = cancel
	s.done = make(chan struct{})

	log.Info().Str("path", s.opts.Path).Int("baud", s.opts.Baud).Msg("serial source opened")
	go s.read(ctx, q)
	return nil
}

func (s *Source) read(ctx context.Context, q readers.Pusher) {
	defer close(s.done)
	defer s.closePort()

	feeder := readers.NewFeeder(s.Name(), q, s.opts.MaxFrameBytes, s.opts.Clock)
	buf := make([]byte, 1024)
	for ctx.Err() == nil {
		n, err := s.port.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("path", s.opts.Path).Msg("failed to read from serial port")
			}
			return
		}
		if n == 0 {
			continue
		}
		if _, err := feeder.Feed(buf[:n]); err != nil {
			// no connection to drop on a serial line, resync on the next frame
			log.Warn().Err(err).Msg("discarding serial input")
		}
	}
}

func (s *Source) closePort() {
	s.closeOnce.Do(func() {
		if err := s.port.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close serial port")
		}
	})
}

// Done is closed when the read loop has stopped.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

func (s *Source) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}

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

package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ndf-zz/caprica/pkg/readers/testutils"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func newTestSource(t *testing.T, port *testutils.MockSerialPort) (*Source, *serial.Mode) {
	t.Helper()
	s := New(Options{Path: testutils.CreateTempDevicePath(t)})
	var mode serial.Mode
	s.portFactory = func(_ string, m *serial.Mode) (SerialPort, error) {
		mode = *m
		return port, nil
	}
	return s, &mode
}

func TestSource_ReadsFrames(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Feed([]byte("\x01Temperature\x02"))
	s, mode := newTestSource(t, port)
	q := queue.New(8)

	require.NoError(t, s.Start(context.Background(), q))
	defer func() { _ = s.Close() }()

	assert.Equal(t, DefaultBaud, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	testutils.AssertNothingQueued(t, q, 50*time.Millisecond)
	port.Feed([]byte("19.5\x04"))

	p := testutils.AssertPacketQueued(t, q, time.Second)
	assert.Equal(t, "temperature", p.Header)
	assert.Equal(t, "19.5", p.Text)
}

func TestSource_ReadErrorStops(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	s, _ := newTestSource(t, port)
	require.NoError(t, s.Start(context.Background(), queue.New(1)))

	port.FailReads(errors.New("device unplugged"))
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("source did not stop after read error")
	}
	assert.True(t, port.IsClosed())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, port.CloseCalls)
}

func TestSource_CloseStopsLoop(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	s, _ := newTestSource(t, port)
	require.NoError(t, s.Start(context.Background(), queue.New(1)))

	require.NoError(t, s.Close())
	assert.True(t, port.IsClosed())
}

func TestSource_OverflowResyncs(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Feed([]byte("\x01aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	s, _ := newTestSource(t, port)
	s.opts.MaxFrameBytes = 16
	q := queue.New(4)
	require.NoError(t, s.Start(context.Background(), q))
	defer func() { _ = s.Close() }()

	require.Eventually(t, func() bool { return port.Pending() == 0 }, time.Second, 5*time.Millisecond)
	port.Feed([]byte("\x01next\x04"))
	assert.Equal(t, "next", testutils.AssertPacketQueued(t, q, time.Second).Header)
	assert.False(t, port.IsClosed())
}

func TestSource_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("factory", func(t *testing.T) {
		t.Parallel()
		s := New(Options{Path: testutils.CreateTempDevicePath(t)})
		s.portFactory = func(string, *serial.Mode) (SerialPort, error) {
			return nil, errors.New("busy")
		}
		err := s.Start(context.Background(), queue.New(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "busy")
		require.NoError(t, s.Close())
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		port := testutils.NewMockSerialPort()
		port.TimeoutErr = errors.New("unsupported")
		s, _ := newTestSource(t, port)
		require.Error(t, s.Start(context.Background(), queue.New(1)))
		assert.True(t, port.IsClosed())
	})
}

func TestSource_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "serial /dev/ttyUSB0", New(Options{Path: "/dev/ttyUSB0"}).Name())
}

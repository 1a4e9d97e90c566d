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

package testutils

import (
	"errors"
	"time"

	"github.com/ndf-zz/caprica/pkg/helpers/syncutil"
)

// MockSerialPort is a mock implementation of serial port for testing.
type MockSerialPort struct {
	ReadError  error
	CloseError error
	TimeoutErr error
	ReadFunc   func(p []byte) (n int, err error)
	ReadData   []byte
	ReadIndex  int
	Closed     bool
	CloseCalls int
	mu         syncutil.RWMutex // protects everything above once the port is in use
}

// NewMockSerialPort creates a new mock serial port for testing.
func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{}
}

// Read hands out ReadData in chunks no larger than p, then behaves like a
// read timeout. ReadFunc and ReadError take precedence when set.
func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	closed := m.Closed
	readFunc := m.ReadFunc
	readErr := m.ReadError
	if !closed && readFunc == nil && readErr == nil && m.ReadIndex < len(m.ReadData) {
		n = copy(p, m.ReadData[m.ReadIndex:])
		m.ReadIndex += n
	}
	m.mu.Unlock()

	switch {
	case closed:
		return 0, errors.New("port closed")
	case readFunc != nil:
		return readFunc(p)
	case readErr != nil:
		return 0, readErr
	case n > 0:
		return n, nil
	default:
		time.Sleep(10 * time.Millisecond)
		return 0, nil
	}
}

// Feed appends data for later reads.
func (m *MockSerialPort) Feed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadData = append(m.ReadData, data...)
}

// Pending returns how many fed bytes have not been read yet.
func (m *MockSerialPort) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ReadData) - m.ReadIndex
}

// FailReads makes every later read return err.
func (m *MockSerialPort) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	m.CloseCalls++
	return m.CloseError
}

func (m *MockSerialPort) SetReadTimeout(_ time.Duration) error {
	return m.TimeoutErr
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockSerialPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}

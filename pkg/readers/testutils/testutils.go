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

// Package testutils provides common testing utilities for source tests.
package testutils

import (
	"context"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/stretchr/testify/require"
)

// AssertPacketQueued waits for the next item on q, requires it to be a
// packet and returns it.
func AssertPacketQueued(t *testing.T, q *queue.Queue, timeout time.Duration) unt4.Packet {
	t.Helper()
	it, ok := q.Pop(context.Background(), timeout)
	require.True(t, ok, "expected packet to be queued within %v", timeout)
	require.Equal(t, queue.KindPacket, it.Kind)
	return it.Packet
}

// AssertNothingQueued verifies that nothing arrives on q within timeout.
func AssertNothingQueued(t *testing.T, q *queue.Queue, timeout time.Duration) {
	t.Helper()
	it, ok := q.Pop(context.Background(), timeout)
	require.False(t, ok, "unexpected item queued: %+v", it)
}

// CreateTempDevicePath creates a temporary file to stand in for a device
// node. On Windows, where device paths are not checked, it returns COM1.
func CreateTempDevicePath(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		return "COM1"
	}

	f, err := os.CreateTemp(t.TempDir(), "device-test-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

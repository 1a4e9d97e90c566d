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

package readers

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeder_QueuesFoldedPackets(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	q := queue.New(8)
	f := NewFeeder("test", q, 0, clockwork.NewFakeClockAt(at))

	res, err := f.Feed([]byte("\x01Humidity\x0245\x04\x01\x02\x100102ab"))
	require.NoError(t, err)
	assert.Equal(t, FeedResult{Queued: 1}, res)

	res, err = f.Feed([]byte("c\x04"))
	require.NoError(t, err)
	assert.Equal(t, FeedResult{Queued: 1}, res)

	it, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, queue.PacketItem(unt4.NewValue("humidity", "45"), at), it)

	it, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, unt4.NewText("", 1, 2, "abc", false), it.Packet)
}

func TestFeeder_SkipsMalformed(t *testing.T) {
	t.Parallel()

	q := queue.New(8)
	f := NewFeeder("test", q, 0, nil)

	res, err := f.Feed([]byte("junk\x04\x01ok\x04"))
	require.NoError(t, err)
	assert.Equal(t, FeedResult{Queued: 1, Malformed: 1}, res)
	assert.Equal(t, 1, q.Len())
}

func TestFeeder_CountsDrops(t *testing.T) {
	t.Parallel()

	q := queue.New(1)
	f := NewFeeder("test", q, 0, nil)

	res, err := f.Feed([]byte("\x01a\x04\x01b\x04\x01c\x04"))
	require.NoError(t, err)
	assert.Equal(t, FeedResult{Queued: 1, Dropped: 2}, res)
}

func TestFeeder_Overflow(t *testing.T) {
	t.Parallel()

	q := queue.New(4)
	f := NewFeeder("test", q, 16, nil)

	_, err := f.Feed(append([]byte{unt4.SOH}, bytes.Repeat([]byte("x"), 16)...))
	require.ErrorIs(t, err, ErrBufferOverflow)

	// the stream can carry on after the tail is discarded
	res, err := f.Feed([]byte("\x01a\x04"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)
}

func TestFeeder_Reset(t *testing.T) {
	t.Parallel()

	q := queue.New(4)
	f := NewFeeder("test", q, 0, nil)
	_, err := f.Feed([]byte("\x01partial"))
	require.NoError(t, err)
	f.Reset()

	res, err := f.Feed([]byte("\x04"))
	require.NoError(t, err)
	assert.Equal(t, FeedResult{Malformed: 1}, res)
}

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

package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startAcceptor(t *testing.T, opts Options) (*Acceptor, *queue.Queue) {
	t.Helper()
	if opts.Address == "" {
		opts.Address = "127.0.0.1:0"
	}
	a := New(opts)
	q := queue.New(32)
	require.NoError(t, a.Start(context.Background(), q))
	return a, q
}

func dial(t *testing.T, a *Acceptor) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	return conn
}

func popPacket(t *testing.T, q *queue.Queue) unt4.Packet {
	t.Helper()
	it, ok := q.Pop(context.Background(), 2*time.Second)
	require.True(t, ok, "no packet queued")
	require.Equal(t, queue.KindPacket, it.Kind)
	return it.Packet
}

func TestAcceptor_QueuesPackets(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, q := startAcceptor(t, Options{})
	defer func() { _ = a.Close() }()

	conn := dial(t, a)
	defer func() { _ = conn.Close() }()

	_, err := conn.Write([]byte("\x01R1\x02\x100503Race1\x04\x01bad"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("\x04\x01\x02\x0c\x04"))
	require.NoError(t, err)

	assert.Equal(t, unt4.NewText("r1", 5, 3, "Race1", false), popPacket(t, q))
	// "\x01bad\x04" is a valid header-only frame
	assert.Equal(t, unt4.Packet{Header: "bad"}, popPacket(t, q))
	assert.True(t, popPacket(t, q).ClearAll)
}

func TestAcceptor_MalformedFrameKeepsConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, q := startAcceptor(t, Options{})
	defer func() { _ = a.Close() }()

	conn := dial(t, a)
	defer func() { _ = conn.Close() }()

	_, err := conn.Write([]byte("garbage\x04\x01ok\x04"))
	require.NoError(t, err)
	assert.Equal(t, "ok", popPacket(t, q).Header)
	assert.Equal(t, 1, a.Connections())
}

func TestAcceptor_ConcurrentConnections(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, q := startAcceptor(t, Options{})
	defer func() { _ = a.Close() }()

	c1 := dial(t, a)
	defer func() { _ = c1.Close() }()
	c2 := dial(t, a)
	defer func() { _ = c2.Close() }()

	// interleaved halves must not mix between connections
	_, err := c1.Write([]byte("\x01one"))
	require.NoError(t, err)
	_, err = c2.Write([]byte("\x01two\x04"))
	require.NoError(t, err)
	assert.Equal(t, "two", popPacket(t, q).Header)

	_, err = c1.Write([]byte("\x04"))
	require.NoError(t, err)
	assert.Equal(t, "one", popPacket(t, q).Header)

	require.Eventually(t, func() bool { return a.Connections() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), a.Accepted())
}

func TestAcceptor_PeerCloseOnlyAffectsThatConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, q := startAcceptor(t, Options{})
	defer func() { _ = a.Close() }()

	c1 := dial(t, a)
	c2 := dial(t, a)
	defer func() { _ = c2.Close() }()
	require.Eventually(t, func() bool { return a.Connections() == 2 }, time.Second, 5*time.Millisecond)

	_, err := c1.Write([]byte("\x01partial"))
	require.NoError(t, err)
	require.NoError(t, c1.Close())
	require.Eventually(t, func() bool { return a.Connections() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c2.Write([]byte("\x01still\x04"))
	require.NoError(t, err)
	assert.Equal(t, "still", popPacket(t, q).Header)
	assert.Zero(t, q.Len(), "partial frame at EOF is dropped")
}

func TestAcceptor_OverflowClosesConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := startAcceptor(t, Options{MaxFrameBytes: 8})
	defer func() { _ = a.Close() }()

	conn := dial(t, a)
	defer func() { _ = conn.Close() }()

	_, err := conn.Write([]byte("\x01header-that-never-ends"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.Error(t, err, "server should close the connection")
	require.Eventually(t, func() bool { return a.Connections() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAcceptor_CloseStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := startAcceptor(t, Options{})
	conn := dial(t, a)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return a.Connections() == 1 }, time.Second, 5*time.Millisecond)

	addr := a.Addr().String()
	require.NoError(t, a.Close())
	assert.Zero(t, a.Connections())

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestAcceptor_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	a := New(Options{Address: "127.0.0.1:0"})
	require.NoError(t, a.Start(ctx, queue.New(1)))
	cancel()
	require.NoError(t, a.Close())
}

func TestAcceptor_BindError(t *testing.T) {
	t.Parallel()

	a, _ := startAcceptor(t, Options{})
	defer func() { _ = a.Close() }()

	b := New(Options{Address: a.Addr().String()})
	err := b.Start(context.Background(), queue.New(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestNew_DefaultAddress(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ":16372", New(Options{}).opts.Address)
	assert.Nil(t, New(Options{}).Addr())
}

// failingListener fails its first Accept, then blocks until closed.
type failingListener struct {
	closed  chan struct{}
	accepts chan struct{}
	once    sync.Once
	calls   int
	mu      sync.Mutex
}

func newFailingListener() *failingListener {
	return &failingListener{
		closed:  make(chan struct{}),
		accepts: make(chan struct{}, 4),
	}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	l.accepts <- struct{}{}

	if first {
		return nil, errors.New("too many open files")
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *failingListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (*failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestAcceptor_AcceptErrorBacksOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	a := New(Options{Clock: clock, Address: "127.0.0.1:0"})
	ln := newFailingListener()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.acceptLoop(ctx, ln, queue.New(1))
	}()

	<-ln.accepts
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	select {
	case <-ln.accepts:
		t.Fatal("accept retried before the backoff elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(acceptBackoff)
	select {
	case <-ln.accepts:
	case <-time.After(2 * time.Second):
		t.Fatal("accept not retried after the backoff")
	}

	cancel()
	require.NoError(t, ln.Close())
	<-done
}

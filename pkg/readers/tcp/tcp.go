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

// Package tcp accepts DHI host connections and feeds their frames to the
// update queue, one goroutine per connection.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/helpers/syncutil"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the legacy DHI listener port.
const DefaultPort = 16372

const readBufferSize = 4096

// acceptBackoff is the pause after a failed Accept before trying again.
const acceptBackoff = 100 * time.Millisecond

// Options configure an Acceptor. A nil Clock uses the real clock.
type Options struct {
	Clock clockwork.Clock
	// Address is a host:port to listen on; ":0" picks a free port.
	Address       string
	MaxFrameBytes int
}

// Acceptor listens for DHI connections. Each connection has its own frame
// buffer; a bad frame or a dead peer only affects that connection.
type Acceptor struct {
	ln       net.Listener
	cancel   context.CancelFunc
	conns    map[net.Conn]struct{}
	opts     Options
	wg       sync.WaitGroup
	accepted atomic.Uint64
	mu       syncutil.Mutex
}

// New returns an Acceptor that is not yet listening.
func New(opts Options) *Acceptor {
	if opts.Address == "" {
		opts.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Acceptor{
		opts:  opts,
		conns: make(map[net.Conn]struct{}),
	}
}

func (*Acceptor) Name() string {
	return "tcp"
}

// Start binds the listener and serves connections in the background until
// ctx is cancelled or Close is called.
func (a *Acceptor) Start(ctx context.Context, q readers.Pusher) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", a.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.opts.Address, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.ln = ln
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Warn().Err(err).Msg("error closing listener")
		}
		a.closeConns()
	}()
	go func() {
		defer a.wg.Done()
		a.acceptLoop(ctx, ln, q)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("listening for DHI connections")
	return nil
}

func (a *Acceptor) acceptLoop(ctx context.Context, ln net.Listener, q readers.Pusher) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("accept failed")
			select {
			case <-ctx.Done():
				return
			case <-a.opts.Clock.After(acceptBackoff):
			}
			continue
		}

		if !a.track(conn) {
			_ = conn.Close()
			return
		}
		a.accepted.Add(1)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serve(ctx, conn, q)
		}()
	}
}

func (a *Acceptor) serve(ctx context.Context, conn net.Conn, q readers.Pusher) {
	remote := conn.RemoteAddr().String()
	defer func() {
		a.untrack(conn)
		_ = conn.Close()
	}()

	log.Info().Str("remote", remote).Msg("DHI host connected")
	feeder := readers.NewFeeder("tcp "+remote, q, a.opts.MaxFrameBytes, a.opts.Clock)
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, ferr := feeder.Feed(buf[:n]); ferr != nil {
				log.Warn().Err(ferr).Str("remote", remote).Msg("closing connection")
				return
			}
		}
		if err != nil {
			feeder.Reset()
			switch {
			case errors.Is(err, io.EOF):
				log.Info().Str("remote", remote).Msg("DHI host disconnected")
			case ctx.Err() != nil:
			default:
				log.Warn().Err(err).Str("remote", remote).Msg("connection read failed")
			}
			return
		}
	}
}

// track registers conn unless the acceptor is shutting down.
func (a *Acceptor) track(conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns == nil {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *Acceptor) untrack(conn net.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, conn)
}

func (a *Acceptor) closeConns() {
	a.mu.Lock()
	conns := a.conns
	a.conns = nil
	a.mu.Unlock()

	for c := range conns {
		_ = c.Close()
	}
}

// Addr returns the bound address, or nil before Start.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Connections returns the number of open connections.
func (a *Acceptor) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// Accepted returns the number of connections accepted since Start.
func (a *Acceptor) Accepted() uint64 {
	return a.accepted.Load()
}

// Close stops listening, drops every connection and waits for their
// goroutines to exit.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	return nil
}

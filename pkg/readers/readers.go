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

// Package readers holds what the packet sources share: the Source contract
// and the Feeder that turns raw bytes into queued packets.
package readers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/rs/zerolog/log"
)

// DefaultMaxFrameBytes is the largest unterminated frame a source will
// buffer before giving up on the stream.
const DefaultMaxFrameBytes = 64 * 1024

// ErrBufferOverflow is returned when a stream buffers more than the frame
// limit without an end marker.
var ErrBufferOverflow = errors.New("frame buffer overflow")

// Pusher is the producer side of the update queue.
type Pusher interface {
	Push(queue.Item) bool
}

// Source is a transport that decodes packets and pushes them to the queue
// until its context is cancelled or Close is called.
type Source interface {
	// Name identifies the source in logs and status.
	Name() string
	// Start begins reading in the background. It returns once the source is
	// ready or failed to open.
	Start(ctx context.Context, q Pusher) error
	// Close stops the source and waits for its goroutines.
	Close() error
}

// FeedResult counts what one Feed call did.
type FeedResult struct {
	Queued    int
	Dropped   int
	Malformed int
}

// Feeder splits a byte stream into frames, decodes them and queues the
// packets. Each stream gets its own Feeder; it is not safe for concurrent
// use.
type Feeder struct {
	q        Pusher
	clock    clockwork.Clock
	source   string
	splitter unt4.Splitter
	max      int
}

// NewFeeder returns a feeder for one stream. maxFrame below one uses
// DefaultMaxFrameBytes.
func NewFeeder(source string, q Pusher, maxFrame int, clock clockwork.Clock) *Feeder {
	if maxFrame < 1 {
		maxFrame = DefaultMaxFrameBytes
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Feeder{source: source, q: q, max: maxFrame, clock: clock}
}

// Feed consumes data. Malformed frames are logged and skipped. It returns
// ErrBufferOverflow once the incomplete tail exceeds the frame limit; the
// caller should then close the stream.
func (f *Feeder) Feed(data []byte) (FeedResult, error) {
	var res FeedResult
	f.splitter.Feed(data)

	for _, frame := range f.splitter.Drain() {
		p, err := unt4.Decode(frame)
		if err != nil {
			res.Malformed++
			log.Debug().Err(err).Str("source", f.source).Msg("skipping malformed frame")
			continue
		}
		if f.q.Push(queue.PacketItem(p.Fold(), f.clock.Now())) {
			res.Queued++
		} else {
			res.Dropped++
		}
	}

	if n := f.splitter.Buffered(); n > f.max {
		f.splitter.Reset()
		return res, fmt.Errorf("%s: %d bytes without end marker: %w", f.source, n, ErrBufferOverflow)
	}
	return res, nil
}

// Reset discards any incomplete frame, as at the end of a stream.
func (f *Feeder) Reset() {
	if n := f.splitter.Buffered(); n > 0 {
		log.Debug().Int("bytes", n).Str("source", f.source).Msg("dropping incomplete frame")
	}
	f.splitter.Reset()
}

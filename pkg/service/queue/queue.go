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

// Package queue carries decoded packets and timer ticks from the network and
// timer producers to the single presenter goroutine.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 32

// Kind identifies what an Item carries.
type Kind int

const (
	KindPacket Kind = iota
	KindTick
)

func (k Kind) String() string {
	switch k {
	case KindPacket:
		return "packet"
	case KindTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Item is one queued update. Packet is only meaningful for KindPacket.
type Item struct {
	At     time.Time
	Packet unt4.Packet
	Kind   Kind
}

// PacketItem wraps p for queuing.
func PacketItem(p unt4.Packet, at time.Time) Item {
	return Item{Kind: KindPacket, Packet: p, At: at}
}

// TickItem returns a tick stamped with at.
func TickItem(at time.Time) Item {
	return Item{Kind: KindTick, At: at}
}

// Stats is a point-in-time copy of the queue counters.
type Stats struct {
	Pushed   uint64 `json:"pushed"`
	Dropped  uint64 `json:"dropped"`
	Capacity int    `json:"capacity"`
	Length   int    `json:"length"`
}

// Queue is a bounded FIFO with many producers and one consumer. Push never
// blocks: when the queue is full the new item is dropped.
type Queue struct {
	clock   clockwork.Clock
	ch      chan Item
	dropLog *rate.Sometimes
	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// New returns a queue holding at most capacity items. A capacity below one
// uses DefaultCapacity.
func New(capacity int) *Queue {
	return NewWithClock(capacity, clockwork.NewRealClock())
}

// NewWithClock is New with the Pop timeout measured on clock.
func NewWithClock(capacity int, clock clockwork.Clock) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		clock:   clock,
		ch:      make(chan Item, capacity),
		dropLog: &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Push enqueues it without blocking and reports whether it was accepted.
func (q *Queue) Push(it Item) bool {
	select {
	case q.ch <- it:
		q.pushed.Add(1)
		return true
	default:
		n := q.dropped.Add(1)
		q.dropLog.Do(func() {
			log.Warn().
				Stringer("kind", it.Kind).
				Uint64("dropped", n).
				Int("capacity", cap(q.ch)).
				Msg("update queue full, dropping item")
		})
		return false
	}
}

// Pop waits up to timeout for the next item. It returns false on timeout or
// when ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Item, bool) {
	select {
	case it := <-q.ch:
		return it, true
	default:
	}

	timer := q.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case it := <-q.ch:
		return it, true
	case <-timer.Chan():
		return Item{}, false
	case <-ctx.Done():
		return Item{}, false
	}
}

// TryPop returns the next item if one is ready.
func (q *Queue) TryPop() (Item, bool) {
	select {
	case it := <-q.ch:
		return it, true
	default:
		return Item{}, false
	}
}

// Len returns the number of items waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pushed:   q.pushed.Load(),
		Dropped:  q.dropped.Load(),
		Capacity: cap(q.ch),
		Length:   len(q.ch),
	}
}

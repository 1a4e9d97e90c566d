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

package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/ndf-zz/caprica/pkg/service/queue"
)

// RunTicker pushes a tick onto q at the top of every wall-clock second until
// ctx is cancelled. The first tick waits for the next whole second so the
// clock hands move in step with the real clock.
func RunTicker(ctx context.Context, clock clockwork.Clock, q readers.Pusher) {
	now := clock.Now()
	first := clock.NewTimer(clock.Until(now.Truncate(time.Second).Add(time.Second)))
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case t := <-first.Chan():
		q.Push(queue.TickItem(t))
	}

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.Chan():
			q.Push(queue.TickItem(t))
		}
	}
}

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

package display

import "sync/atomic"

// ConnectionState is the link state of a network sink.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// IsValidTransition reports whether a sink may move from one state to
// another. Any failure drops back to disconnected.
func IsValidTransition(from, to ConnectionState) bool {
	switch from {
	case StateDisconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected || to == StateDisconnected
	case StateConnected:
		return to == StateDisconnected
	default:
		return false
	}
}

// StateManager holds a ConnectionState that can be read from any
// goroutine.
type StateManager struct {
	state atomic.Int32
}

func (sm *StateManager) State() ConnectionState {
	return ConnectionState(sm.state.Load())
}

// Transition moves to next if that is a valid step from the current state.
func (sm *StateManager) Transition(next ConnectionState) bool {
	for {
		cur := sm.State()
		if !IsValidTransition(cur, next) {
			return false
		}
		if sm.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

// Reset forces the disconnected state.
func (sm *StateManager) Reset() {
	sm.state.Store(int32(StateDisconnected))
}

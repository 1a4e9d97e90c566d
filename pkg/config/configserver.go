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

package config

const (
	DefaultServerPort    = 16372
	DefaultMaxFrameBytes = 64 * 1024
	DefaultDisplayWidth  = 256
	DefaultDisplayHeight = 128
	DefaultDisplaySink   = "terminal:"
	DefaultIdleTimeout   = 30
	DefaultQueueSize     = 32
)

type Server struct {
	Listen        string `toml:"listen" validate:"omitempty,hostname|ip"`
	Port          int    `toml:"port" validate:"min=1,max=65535"`
	MaxFrameBytes int    `toml:"max_frame_bytes" validate:"min=64"`
}

type Display struct {
	Sink        string `toml:"sink"`
	Width       int    `toml:"width" validate:"min=64,max=4096"`
	Height      int    `toml:"height" validate:"min=32,max=4096"`
	IdleTimeout int    `toml:"idle_timeout" validate:"min=1"`
	QueueSize   int    `toml:"queue_size" validate:"min=1"`
}

// ListenAddress is the host:port the acceptor binds.
func (c *Instance) ListenAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return joinHostPort(c.vals.Server.Listen, c.vals.Server.Port)
}

func (c *Instance) ServerPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.Port
}

// SetServerPort overrides the listening port for this run. It is not
// persisted unless Save is called.
func (c *Instance) SetServerPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Server.Port = port
}

func (c *Instance) MaxFrameBytes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.MaxFrameBytes
}

func (c *Instance) DisplaySize() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.Width, c.vals.Display.Height
}

func (c *Instance) DisplaySink() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.Sink
}

func (c *Instance) SetDisplaySink(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Display.Sink = address
}

func (c *Instance) IdleTimeout() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.IdleTimeout
}

func (c *Instance) QueueSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.QueueSize
}

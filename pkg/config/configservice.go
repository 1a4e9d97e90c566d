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
	DefaultSerialBaud = 9600
	DefaultMQTTTopic  = "caprica/unt4"
)

type Serial struct {
	Path string `toml:"path"`
	Baud int    `toml:"baud" validate:"min=50,max=4000000"`
}

type MQTT struct {
	Broker string `toml:"broker"`
	Topic  string `toml:"topic" validate:"required_with=Broker"`
}

type API struct {
	AllowedIPs []string `toml:"allowed_ips,omitempty"`
	Port       int      `toml:"port" validate:"min=0,max=65535"`
}

type Discovery struct {
	InstanceName string `toml:"instance_name"`
	Enabled      bool   `toml:"enabled"`
}

type Telemetry struct {
	DSN            string `toml:"dsn" validate:"omitempty,url"`
	ErrorReporting bool   `toml:"error_reporting"`
}

// SerialPath is the serial device to read frames from. Empty disables the
// serial source.
func (c *Instance) SerialPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Path
}

func (c *Instance) SerialBaud() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Baud
}

// MQTTBroker is the broker URL to subscribe to. Empty disables the MQTT
// source.
func (c *Instance) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.Broker
}

func (c *Instance) MQTTTopic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.Topic
}

// APIPort returns the status API port, 0 when the API is disabled.
func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.Port
}

// APIListen returns the status API address, or "" when disabled.
func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.API.Port == 0 {
		return ""
	}
	return joinHostPort(c.vals.Server.Listen, c.vals.API.Port)
}

// AllowedIPs lists the addresses and CIDR prefixes the API answers. Empty
// allows everyone.
func (c *Instance) AllowedIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.AllowedIPs
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.API.Port = port
}

func (c *Instance) DiscoveryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Discovery.Enabled
}

func (c *Instance) DiscoveryInstanceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Discovery.InstanceName
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Telemetry.ErrorReporting
}

func (c *Instance) TelemetryDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Telemetry.DSN
}

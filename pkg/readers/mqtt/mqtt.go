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

// Package mqtt subscribes to a topic carrying DHI frames, as relayed by
// timing software that publishes its scoreboard feed to a broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/helpers/syncutil"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/rs/zerolog/log"
)

// DefaultTopic is the topic subscribed to when none is configured.
const DefaultTopic = "caprica/unt4"

const connectTimeout = 5 * time.Second

// ClientFactory creates a paho client from options (for mocking in tests).
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// DefaultClientFactory creates a real paho client.
func DefaultClientFactory(opts *mqtt.ClientOptions) mqtt.Client {
	return mqtt.NewClient(opts)
}

type Options struct {
	Clock         clockwork.Clock
	Broker        string
	Topic         string
	MaxFrameBytes int
}

// Source feeds every message on the topic through one frame splitter, so a
// frame may be split across messages.
type Source struct {
	client        mqtt.Client
	clientFactory ClientFactory
	feeder        *readers.Feeder
	opts          Options
	mu            syncutil.Mutex // protects feeder
}

func New(opts Options) *Source {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	return &Source{
		opts:          opts,
		clientFactory: DefaultClientFactory,
	}
}

func (s *Source) Name() string {
	return "mqtt " + s.opts.Topic
}

// Start connects to the broker and subscribes on every (re)connect.
func (s *Source) Start(_ context.Context, q readers.Pusher) error {
	opts, err := NewClientOptions(s.opts.Broker, "caprica-")
	if err != nil {
		return fmt.Errorf("invalid MQTT broker: %w", err)
	}

	s.feeder = readers.NewFeeder(s.Name(), q, s.opts.MaxFrameBytes, s.opts.Clock)
	topic := s.opts.Topic

	opts.OnConnect = func(client mqtt.Client) {
		log.Info().Msgf("mqtt source: connected to %s", s.opts.Broker)
		// QoS 1 = at-least-once delivery for reliability
		token := client.Subscribe(topic, 1, s.handleMessage)
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msgf("mqtt source: failed to subscribe to %s", topic)
			return
		}
		log.Info().Msgf("mqtt source: subscribed to topic %s", topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt source: connection lost")
		s.mu.Lock()
		s.feeder.Reset()
		s.mu.Unlock()
	}

	s.client = s.clientFactory(opts)
	token := s.client.Connect()
	// Use WaitTimeout to prevent indefinite blocking
	if !token.WaitTimeout(connectTimeout) {
		s.client.Disconnect(0)
		s.client = nil
		return errors.New("failed to connect to MQTT broker: connection timeout")
	}
	if err := token.Error(); err != nil {
		s.client.Disconnect(0)
		s.client = nil
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

func (s *Source) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	if len(payload) == 0 {
		log.Debug().Msg("mqtt source: ignoring empty message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.feeder.Feed(payload); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt source: discarding input")
	}
}

// Connected reports whether the broker connection is up.
func (s *Source) Connected() bool {
	return s.client != nil && s.client.IsConnected()
}

func (s *Source) Close() error {
	if s.client != nil && s.client.IsConnected() {
		log.Debug().Msg("mqtt source: disconnecting")
		s.client.Disconnect(250)
	}
	return nil
}

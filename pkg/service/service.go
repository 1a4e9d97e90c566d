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

// Package service wires the packet sources, the update queue, the presenter
// and the display sinks into one running bridge.
package service

import (
	"context"
	"fmt"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/internal/telemetry"
	"github.com/ndf-zz/caprica/pkg/api"
	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/display"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/ndf-zz/caprica/pkg/readers/mqtt"
	"github.com/ndf-zz/caprica/pkg/readers/serial"
	"github.com/ndf-zz/caprica/pkg/readers/tcp"
	"github.com/ndf-zz/caprica/pkg/render"
	"github.com/ndf-zz/caprica/pkg/service/discovery"
	"github.com/ndf-zz/caprica/pkg/service/presenter"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SinkOpener builds the display sink for a configured address.
type SinkOpener func(address string, width, height int) (display.Sink, error)

// Options override the service's defaults. The zero value uses the real
// clock and display.Open.
type Options struct {
	Clock    clockwork.Clock
	OpenSink SinkOpener
	// Register and Interfaces replace the mDNS registrar and interface
	// lookup, for tests.
	Register   discovery.Registrar
	Interfaces func() ([]net.Interface, error)
}

// Service is a running bridge. Stop it with Stop; Done is closed once every
// goroutine has exited and the sinks are closed.
type Service struct {
	cancel    context.CancelFunc
	queue     *queue.Queue
	presenter *presenter.Presenter
	acceptor  *tcp.Acceptor
	sink      display.Sink
	discovery *discovery.Service
	apiLn     net.Listener
	done      chan struct{}
	sources   []readers.Source
	names     []string
}

// Start runs the bridge and returns a stop function and a channel closed
// when it has shut down, in the shape the CLI expects.
func Start(cfg *config.Instance) (stop func() error, done <-chan struct{}, err error) {
	svc, err := New(cfg, Options{})
	if err != nil {
		return nil, nil, err
	}
	return svc.Stop, svc.Done(), nil
}

// New starts every configured component. Only failures to open the display
// or bind a listener are returned; optional sources that fail to open are
// logged and skipped.
func New(cfg *config.Instance, opts Options) (*Service, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.OpenSink == nil {
		opts.OpenSink = display.Open
	}

	log.Info().Msgf("version: %s", config.AppVersion)

	w, h := cfg.DisplaySize()
	geom := presenter.DefaultGeometry
	geom.Width = w
	geom.Height = h

	sink, err := opts.OpenSink(cfg.DisplaySink(), w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to open display: %w", err)
	}

	s := &Service{
		queue: queue.NewWithClock(cfg.QueueSize(), opts.Clock),
		sink:  sink,
		done:  make(chan struct{}),
	}

	canvas := render.NewCanvas(w, h, geom.CellW, geom.CellH)
	s.presenter = presenter.New(presenter.Options{
		Renderer:    canvas,
		Sink:        sink,
		Clock:       opts.Clock,
		Face:        render.FaceImage(geom.FaceSize(), render.Dim(render.DefaultForeground, 0.5)),
		Geometry:    geom,
		IdleTimeout: cfg.IdleTimeout(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	log.Info().Msg("starting DHI listener")
	s.acceptor = tcp.New(tcp.Options{
		Clock:         opts.Clock,
		Address:       cfg.ListenAddress(),
		MaxFrameBytes: cfg.MaxFrameBytes(),
	})
	if err := s.acceptor.Start(ctx, s.queue); err != nil {
		cancel()
		_ = sink.Close()
		return nil, fmt.Errorf("failed to start listener: %w", err)
	}
	s.addSource(s.acceptor)

	var apiServer *api.Server
	if addr := cfg.APIListen(); addr != "" {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			cancel()
			_ = s.acceptor.Close()
			_ = sink.Close()
			return nil, fmt.Errorf("failed to listen for api on %s: %w", addr, err)
		}
		s.apiLn = ln
		apiServer = api.New(api.Options{
			Clock:        opts.Clock,
			Presenter:    s.presenter,
			Queue:        s.queue,
			Acceptor:     s.acceptor,
			Sources:      s.Sources,
			Listen:       cfg.ListenAddress(),
			AllowedIPs:   cfg.AllowedIPs(),
			MaxBodyBytes: cfg.MaxFrameBytes(),
		})
	}

	if path := cfg.SerialPath(); path != "" {
		log.Info().Str("path", path).Msg("starting serial source")
		src := serial.New(serial.Options{
			Clock:         opts.Clock,
			Path:          path,
			Baud:          cfg.SerialBaud(),
			MaxFrameBytes: cfg.MaxFrameBytes(),
		})
		if err := src.Start(ctx, s.queue); err != nil {
			log.Error().Err(err).Msg("serial source failed to start (continuing without it)")
		} else {
			s.addSource(src)
		}
	}

	if broker := cfg.MQTTBroker(); broker != "" {
		log.Info().Str("broker", broker).Msg("starting mqtt source")
		src := mqtt.New(mqtt.Options{
			Clock:         opts.Clock,
			Broker:        broker,
			Topic:         cfg.MQTTTopic(),
			MaxFrameBytes: cfg.MaxFrameBytes(),
		})
		if err := src.Start(ctx, s.queue); err != nil {
			log.Error().Err(err).Msg("mqtt source failed to start (continuing without it)")
		} else {
			s.addSource(src)
		}
	}

	if cfg.DiscoveryEnabled() {
		log.Info().Msg("starting mDNS discovery service")
		s.discovery = discovery.New(discovery.Options{
			Clock:        opts.Clock,
			Register:     opts.Register,
			Interfaces:   opts.Interfaces,
			InstanceName: cfg.DiscoveryInstanceName(),
			Port:         listenerPort(s.acceptor.Addr()),
		})
		if err := s.discovery.Start(ctx); err != nil {
			log.Error().Err(err).Msg("mDNS discovery failed to start (continuing without discovery)")
		}
	}

	// the consumer outlives the sources so it can drain what they queued
	consumerCtx, stopConsumer := context.WithCancel(context.Background())

	var g errgroup.Group
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("service context cancelled, closing sources")
		s.closeSources()
		stopConsumer()
		return nil
	})
	g.Go(func() error {
		return s.presenter.Run(consumerCtx, s.queue)
	})
	g.Go(func() error {
		RunTicker(ctx, opts.Clock, s.queue)
		return nil
	})
	if apiServer != nil {
		g.Go(func() error {
			return apiServer.ServeListener(ctx, s.apiLn)
		})
	}
	if q, ok := sink.(interface{ Done() <-chan struct{} }); ok {
		g.Go(func() error {
			select {
			case <-q.Done():
				cancel()
			case <-ctx.Done():
			}
			return nil
		})
	}

	go func() {
		err := g.Wait()
		if err != nil {
			log.Error().Err(err).Msg("service stopped with error")
		}
		if s.discovery != nil {
			s.discovery.Stop()
		}
		if err := s.sink.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing display")
		}
		telemetry.SetStatus(nil)
		log.Info().Msg("service stopped")
		close(s.done)
	}()

	telemetry.SetStatus(s.reportStatus)
	log.Info().Strs("sources", s.names).Msg("service started")
	return s, nil
}

// reportStatus describes the bridge for error reports.
func (s *Service) reportStatus() telemetry.Status {
	snap := s.presenter.Snapshot()
	return telemetry.Status{
		Mode:         snap.Mode.String(),
		Sources:      s.Sources(),
		IdleTicks:    snap.IdleTicks,
		Connections:  s.acceptor.Connections(),
		Frames:       snap.Frames,
		SinkErrors:   snap.SinkErrors,
		QueueDropped: s.queue.Stats().Dropped,
	}
}

func (s *Service) addSource(src readers.Source) {
	s.sources = append(s.sources, src)
	s.names = append(s.names, src.Name())
}

func (s *Service) closeSources() {
	for _, src := range s.sources {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("error closing source")
		}
	}
}

func listenerPort(addr net.Addr) int {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// Stop shuts the service down and waits for it to finish.
func (s *Service) Stop() error {
	s.cancel()
	<-s.done
	return nil
}

// Done is closed once the service has fully stopped.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Addr is the DHI listener address.
func (s *Service) Addr() net.Addr {
	return s.acceptor.Addr()
}

// APIAddr is the status API address, nil when the API is disabled.
func (s *Service) APIAddr() net.Addr {
	if s.apiLn == nil {
		return nil
	}
	return s.apiLn.Addr()
}

// Sources names the packet sources that started.
func (s *Service) Sources() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	if s.apiLn != nil {
		names = append(names, "api")
	}
	return names
}

// Snapshot returns the presenter state last published.
func (s *Service) Snapshot() presenter.Snapshot {
	return s.presenter.Snapshot()
}

// QueueStats returns the update queue counters.
func (s *Service) QueueStats() queue.Stats {
	return s.queue.Stats()
}

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

// Package discovery advertises the scoreboard listener over mDNS so result
// systems on the LAN can find it without an address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// ServiceType is the DNS-SD service type of a DHI scoreboard.
const ServiceType = "_dhi._tcp"

const domain = "local."

// retryInterval is how often to retry mDNS registration when network is unavailable.
const retryInterval = 30 * time.Second

// maxRetryDuration is the maximum time to keep retrying mDNS registration.
const maxRetryDuration = 5 * time.Minute

var ErrInvalidPort = errors.New("invalid advertised port")

// virtualInterfacePrefixes lists common prefixes for virtual/container network interfaces
// that should be excluded from mDNS registration.
var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

// Server is a running mDNS registration.
type Server interface {
	Shutdown()
}

// Registrar publishes a service record. DefaultRegistrar uses zeroconf.
type Registrar func(
	instance, service, domain string,
	port int,
	text []string,
	ifaces []net.Interface,
) (Server, error)

func DefaultRegistrar(
	instance, service, domain string,
	port int,
	text []string,
	ifaces []net.Interface,
) (Server, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, fmt.Errorf("zeroconf register: %w", err)
	}
	return server, nil
}

func getPreferredInterfaces() ([]net.Interface, error) {
	allIfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}

	return filterInterfaces(allIfaces), nil
}

// filterInterfaces keeps interfaces that are up, non-loopback,
// multicast-capable and non-virtual.
func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var preferred []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}

		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		// mDNS requires multicast
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		if isVirtualInterface(iface.Name) {
			continue
		}

		preferred = append(preferred, iface)
	}

	return preferred
}

func isVirtualInterface(name string) bool {
	lowerName := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			return true
		}
	}
	return false
}

type Options struct {
	Clock        clockwork.Clock
	Register     Registrar
	Interfaces   func() ([]net.Interface, error)
	InstanceName string
	Port         int
}

// Service manages the mDNS advertisement of the listener.
type Service struct {
	server       Server
	clock        clockwork.Clock
	register     Registrar
	interfaces   func() ([]net.Interface, error)
	cancelFunc   context.CancelFunc
	instanceID   string
	instanceName string
	wg           sync.WaitGroup
	port         int
	stopped      bool
	mu           syncutil.Mutex
}

func New(opts Options) *Service {
	s := &Service{
		clock:        opts.Clock,
		register:     opts.Register,
		interfaces:   opts.Interfaces,
		instanceName: opts.InstanceName,
		port:         opts.Port,
		instanceID:   uuid.New().String(),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.register == nil {
		s.register = DefaultRegistrar
	}
	if s.interfaces == nil {
		s.interfaces = getPreferredInterfaces
	}
	return s
}

// Start begins mDNS advertising. If the first registration fails, for
// example because the network is not up yet, it keeps retrying in the
// background until ctx is done or maxRetryDuration passes.
func (s *Service) Start(ctx context.Context) error {
	if s.port <= 0 || s.port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, s.port)
	}

	if s.instanceName == "" {
		s.instanceName = resolveInstanceName(os.Hostname)
	}

	if s.tryRegister() {
		return nil
	}

	log.Info().
		Dur("retryInterval", retryInterval).
		Dur("maxDuration", maxRetryDuration).
		Msg("mDNS registration failed, starting background retry (network may not be ready)")

	retryCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancelFunc = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.retryLoop(retryCtx)

	return nil
}

func (s *Service) txtRecords() []string {
	return []string{
		"id=" + s.instanceID,
		"version=" + config.AppVersion,
		"proto=unt4",
	}
}

func (s *Service) tryRegister() bool {
	ifaces, err := s.interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("failed to get network interfaces")
		return false
	}

	if len(ifaces) == 0 {
		log.Debug().Msg("no suitable network interfaces found for mDNS")
		return false
	}

	ifaceNames := make([]string, len(ifaces))
	for i, iface := range ifaces {
		ifaceNames[i] = iface.Name
	}
	log.Debug().Strs("interfaces", ifaceNames).Msg("selected interfaces for mDNS")

	server, err := s.register(
		s.instanceName,
		ServiceType,
		domain,
		s.port,
		s.txtRecords(),
		ifaces,
	)
	if err != nil {
		log.Debug().Err(err).Msg("mDNS registration attempt failed")
		return false
	}

	s.mu.Lock()
	// Stop may have run while registering.
	if s.stopped {
		s.mu.Unlock()
		server.Shutdown()
		return false
	}
	s.server = server
	s.mu.Unlock()

	log.Info().
		Str("instance", s.instanceName).
		Int("port", s.port).
		Str("type", ServiceType).
		Strs("interfaces", ifaceNames).
		Msg("mDNS service advertising started")

	return true
}

func (s *Service) retryLoop(ctx context.Context) {
	defer s.wg.Done()

	deadline := s.clock.Now().Add(maxRetryDuration)
	ticker := s.clock.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.Chan():
			if s.tryRegister() {
				log.Info().Msg("mDNS registration succeeded after retry")
				return
			}
			if !now.Before(deadline) {
				log.Warn().Msg("mDNS registration retry timed out, discovery will not be available")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop withdraws the advertisement, sending goodbye packets, and waits for
// any retry loop to exit. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true

	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	if s.server != nil {
		log.Debug().Msg("stopping mDNS service advertising")
		s.server.Shutdown()
		s.server = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Advertising reports whether a registration is currently active.
func (s *Service) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// InstanceName returns the resolved mDNS instance name, empty before Start.
func (s *Service) InstanceName() string {
	return s.instanceName
}

func resolveInstanceName(hostname func() (string, error)) string {
	name, err := hostname()
	if err != nil || name == "" {
		log.Warn().Err(err).Msg("failed to get hostname, using fallback")
		return config.AppName
	}
	return config.AppName + "-" + name
}

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

// Package daemon runs the service in the foreground until it is signalled,
// guarding against a second copy with a PID file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// PidFile is written to the run directory while the service is up.
const PidFile = "caprica.pid"

var (
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")
)

// ServiceEntry starts the service and returns its stop function and a
// channel closed once it has shut down.
type ServiceEntry func() (stop func() error, done <-chan struct{}, err error)

type Options struct {
	Entry ServiceEntry
	// RunDir holds the PID file.
	RunDir string
	// Signals stop the service. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

type Service struct {
	start   ServiceEntry
	pidPath string
	signals []os.Signal
}

func New(opts Options) (*Service, error) {
	if err := os.MkdirAll(opts.RunDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &Service{
		start:   opts.Entry,
		pidPath: filepath.Join(opts.RunDir, PidFile),
		signals: opts.Signals,
	}, nil
}

func (s *Service) createPidFile() error {
	err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func (s *Service) removePidFile() {
	if err := os.Remove(s.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Msg("error removing pid file")
	}
}

// Pid returns the process ID in the PID file, or 0 if there is none.
func (s *Service) Pid() (int, error) {
	//nolint:gosec // path is built from the run directory
	data, err := os.ReadFile(s.pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("error reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("error parsing pid: %w", err)
	}
	return pid, nil
}

// Running reports whether the process named in the PID file is alive.
func (s *Service) Running() bool {
	pid, err := s.Pid()
	if err != nil || pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Run starts the service and blocks until ctx is cancelled, a stop signal
// arrives or the service shuts itself down.
func (s *Service) Run(ctx context.Context) error {
	if s.Running() {
		return ErrAlreadyRunning
	}

	if err := s.createPidFile(); err != nil {
		return err
	}
	defer s.removePidFile()

	log.Info().Msg("starting service")
	stop, done, err := s.start()
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	sigCtx, cancel := signal.NotifyContext(ctx, s.signals...)
	defer cancel()

	select {
	case <-done:
		log.Info().Msg("service shut down internally")
		return nil
	case <-sigCtx.Done():
	}

	log.Info().Msg("stopping service")
	if err := stop(); err != nil {
		return fmt.Errorf("error stopping service: %w", err)
	}
	return nil
}

// Stop asks the running service to shut down and waits up to timeout for
// its PID file to go away.
func (s *Service) Stop(timeout time.Duration) error {
	if !s.Running() {
		return ErrNotRunning
	}

	pid, err := s.Pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for s.Running() {
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for service to stop")
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

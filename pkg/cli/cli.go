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

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ndf-zz/caprica/internal/telemetry"
	"github.com/ndf-zz/caprica/pkg/api/client"
	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/helpers"
	"github.com/ndf-zz/caprica/pkg/helpers/syncutil"
	"github.com/ndf-zz/caprica/pkg/readers/tcp"
	"github.com/ndf-zz/caprica/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

const stopTimeout = 10 * time.Second

type Flags struct {
	set     *flag.FlagSet
	Port    *int
	Config  *string
	Daemon  *bool
	Version *bool
	Status  *bool
	Clear   *bool
	Stop    *bool
}

// SetupFlags defines the command line flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{
		set:     fs,
		Port:    new(int),
		Version: new(bool),
	}
	fs.IntVar(f.Port, "port", tcp.DefaultPort, "TCP port to listen on for DHI connections")
	fs.IntVar(f.Port, "p", tcp.DefaultPort, "shorthand for -port")
	f.Config = fs.String(
		"config",
		"",
		"path to the config file",
	)
	f.Daemon = fs.Bool(
		"daemon",
		false,
		"run without the terminal preview, logging to stderr",
	)
	fs.BoolVar(f.Version, "version", false, "print version and exit")
	fs.BoolVar(f.Version, "v", false, "shorthand for -version")
	f.Status = fs.Bool(
		"status",
		false,
		"print the status of the running instance and exit",
	)
	f.Clear = fs.Bool(
		"clear",
		false,
		"clear the display of the running instance and exit",
	)
	f.Stop = fs.Bool(
		"stop",
		false,
		"stop the running instance and exit",
	)
	return f
}

func (f *Flags) Parse(args []string) error {
	if err := f.set.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre actions flags that need no config or logging. It reports whether the
// program should exit.
func (f *Flags) Pre(out io.Writer) bool {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s\n", config.AppName, config.AppVersion)
		return true
	}
	return false
}

// ApplyOverrides copies command line settings over the loaded config. They
// are not saved.
func (f *Flags) ApplyOverrides(cfg *config.Instance) {
	if f.isFlagPassed("port") || f.isFlagPassed("p") {
		cfg.SetServerPort(*f.Port)
	}
	if *f.Daemon {
		cfg.SetDisplaySink(withoutTerminal(cfg.DisplaySink()))
	}
}

// withoutTerminal drops the terminal preview from a sink list, since a
// daemon has no screen to draw on.
func withoutTerminal(address string) string {
	var kept []string
	for _, part := range strings.Split(address, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(part, "terminal:") {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ",")
}

// Post actions flags that talk to an already running instance. It reports
// whether one was handled, in which case the program should exit.
func (f *Flags) Post(ctx context.Context, cfg *config.Instance, out io.Writer) (bool, error) {
	switch {
	case *f.Status:
		c, err := client.NewLocal(cfg)
		if err != nil {
			return true, fmt.Errorf("error getting status: %w", err)
		}
		status, err := c.Status(ctx)
		if err != nil {
			return true, fmt.Errorf("error getting status: %w", err)
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return true, fmt.Errorf("error encoding status: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
		return true, nil
	case *f.Clear:
		c, err := client.NewLocal(cfg)
		if err != nil {
			return true, fmt.Errorf("error clearing display: %w", err)
		}
		if _, err := c.Clear(ctx); err != nil {
			return true, fmt.Errorf("error clearing display: %w", err)
		}
		return true, nil
	case *f.Stop:
		svc, err := daemon.New(daemon.Options{RunDir: helpers.RunDir()})
		if err != nil {
			return true, fmt.Errorf("error stopping service: %w", err)
		}
		if err := svc.Stop(stopTimeout); err != nil {
			return true, fmt.Errorf("error stopping service: %w", err)
		}
		_, _ = fmt.Fprintln(out, "service stopped")
		return true, nil
	}
	return false, nil
}

// Setup initializes logging, the config and error reporting.
func (f *Flags) Setup(defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.InitLogging(helpers.LogDir(), writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	if *f.Config != "" {
		if err := os.Setenv(config.CfgEnv, *f.Config); err != nil {
			return nil, fmt.Errorf("error setting config path: %w", err)
		}
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), defaults)
	if errors.Is(err, config.ErrSchemaMismatch) {
		return nil, fmt.Errorf("error loading config, remove it to regenerate defaults: %w", err)
	} else if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	helpers.SetLogLevel(cfg.DebugLogging())
	log.Info().
		Str("path", cfg.Path()).
		Bool("deadlock_detection", syncutil.DeadlockEnabled).
		Msg("loaded config")
	f.ApplyOverrides(cfg)

	if err := telemetry.Init(telemetry.Options{
		Enabled: cfg.ErrorReporting(),
		DSN:     cfg.TelemetryDSN(),
		Version: config.AppVersion,
		Listen:  cfg.ListenAddress(),
		Sinks:   cfg.DisplaySink(),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}

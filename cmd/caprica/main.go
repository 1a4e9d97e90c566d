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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ndf-zz/caprica/internal/telemetry"
	"github.com/ndf-zz/caprica/pkg/cli"
	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/helpers"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	if flags.Pre(os.Stdout) {
		return nil
	}

	// the terminal preview owns the screen unless running as a daemon
	var logWriters []io.Writer
	if *flags.Daemon {
		logWriters = []io.Writer{helpers.ConsoleWriter()}
	}

	cfg, err := flags.Setup(config.BaseDefaults, logWriters)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	defer telemetry.Close()

	ctx := context.Background()
	if done, err := flags.Post(ctx, cfg, os.Stdout); done {
		return err //nolint:wrapcheck // already wrapped
	}

	return cli.RunApp(ctx, cfg) //nolint:wrapcheck // already wrapped
}

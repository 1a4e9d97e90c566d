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
	"errors"
	"fmt"
	"os"

	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/helpers"
	"github.com/ndf-zz/caprica/pkg/service"
	"github.com/ndf-zz/caprica/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

// RunApp runs the service in the foreground until it is signalled or the
// operator quits the terminal preview.
func RunApp(ctx context.Context, cfg *config.Instance) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Error().Msgf("panic recovered: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()

	svc, err := daemon.New(daemon.Options{
		Entry:  func() (func() error, <-chan struct{}, error) { return service.Start(cfg) },
		RunDir: helpers.RunDir(),
	})
	if err != nil {
		return fmt.Errorf("error preparing service: %w", err)
	}

	err = svc.Run(ctx)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		pid, _ := svc.Pid()
		log.Info().Int("pid", pid).Msg("service already running, exiting")
		return nil
	} else if err != nil {
		log.Error().Err(err).Msg("service failed")
		return err //nolint:wrapcheck // daemon errors carry context
	}
	return nil
}

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

// Package telemetry reports error-level logs to Sentry when the operator
// opts in. Each event carries the display sinks and listener from config
// and, once the service is up, a snapshot of the bridge state.
package telemetry

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/ndf-zz/caprica/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

// Options come from the error_reporting config section plus the
// addresses that describe this installation.
type Options struct {
	DSN     string
	Version string
	Listen  string
	Sinks   string
	Enabled bool
}

// Status is the bridge state attached to every reported event.
type Status struct {
	Mode         string
	Sources      []string
	IdleTicks    int
	Connections  int
	Frames       uint64
	SinkErrors   uint64
	QueueDropped uint64
}

var (
	enabled   bool
	writer    *sentryzerolog.Writer
	closeOnce sync.Once
	homeDir   string
	statusFn  atomic.Pointer[func() Status]
)

// Init starts Sentry and tees error-level logs to it. Reporting stays off
// unless it is enabled and a DSN is configured.
func Init(opts Options) error {
	if !opts.Enabled {
		log.Debug().Msg("error reporting disabled")
		return nil
	}
	if opts.DSN == "" {
		log.Warn().Msg("error reporting enabled but no dsn configured")
		return nil
	}

	homeDir, _ = os.UserHomeDir()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "caprica@" + opts.Version,
		Environment:      runtime.GOOS,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return prepareEvent(event, homeDir, currentStatus())
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("sinks", sinkKinds(opts.Sinks))
		scope.SetContext("install", sentry.Context{
			"listen": opts.Listen,
			"sinks":  opts.Sinks,
		})
	})

	writer, err = sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:       []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout: flushTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create sentry zerolog writer: %w", err)
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(
		helpers.LogWriter(),
		writer,
	)).With().Timestamp().Caller().Logger()

	enabled = true
	log.Info().Str("sinks", sinkKinds(opts.Sinks)).Msg("error reporting enabled")
	return nil
}

// SetStatus registers fn to describe the running bridge on each event.
// A nil fn clears it.
func SetStatus(fn func() Status) {
	if fn == nil {
		statusFn.Store(nil)
		return
	}
	statusFn.Store(&fn)
}

func currentStatus() *Status {
	fn := statusFn.Load()
	if fn == nil {
		return nil
	}
	st := (*fn)()
	return &st
}

// Close flushes pending events. Safe to call more than once.
func Close() {
	if !enabled {
		return
	}
	closeOnce.Do(func() {
		_ = writer.Close()
		sentry.Flush(flushTimeout)
	})
}

// prepareEvent strips the host name and home directory and attaches st.
func prepareEvent(event *sentry.Event, home string, st *Status) *sentry.Event {
	event.ServerName = ""
	event.Message = trimHome(event.Message, home)
	for i := range event.Exception {
		event.Exception[i].Value = trimHome(event.Exception[i].Value, home)
		if event.Exception[i].Stacktrace == nil {
			continue
		}
		for j := range event.Exception[i].Stacktrace.Frames {
			frame := &event.Exception[i].Stacktrace.Frames[j]
			frame.AbsPath = trimHome(frame.AbsPath, home)
		}
	}

	if st == nil {
		return event
	}
	if event.Tags == nil {
		event.Tags = make(map[string]string)
	}
	event.Tags["mode"] = st.Mode
	event.Tags["sources"] = strings.Join(st.Sources, ",")
	if event.Contexts == nil {
		event.Contexts = make(map[string]sentry.Context)
	}
	event.Contexts["bridge"] = sentry.Context{
		"mode":          st.Mode,
		"idle_ticks":    st.IdleTicks,
		"connections":   st.Connections,
		"frames":        st.Frames,
		"sink_errors":   st.SinkErrors,
		"queue_dropped": st.QueueDropped,
	}
	return event
}

func trimHome(s, home string) string {
	if home == "" || home == "/" {
		return s
	}
	return strings.ReplaceAll(s, home, "~")
}

// sinkKinds reduces a display sink list to its sorted schemes, e.g.
// "ddp,terminal", leaving panel addresses out of the tags.
func sinkKinds(list string) string {
	var kinds []string
	for _, addr := range strings.Split(list, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		kind := addr
		if u, err := url.Parse(addr); err == nil && u.Scheme != "" {
			kind = u.Scheme
		}
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		return "none"
	}
	slices.Sort(kinds)
	return strings.Join(kinds, ",")
}

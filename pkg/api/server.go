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

// Package api serves the HTTP status API: a JSON snapshot of the display
// and endpoints that queue packets without a DHI connection.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/ndf-zz/caprica/pkg/api/middleware"
	"github.com/ndf-zz/caprica/pkg/api/models"
	"github.com/ndf-zz/caprica/pkg/api/validation"
	"github.com/ndf-zz/caprica/pkg/config"
	"github.com/ndf-zz/caprica/pkg/readers"
	"github.com/ndf-zz/caprica/pkg/service/presenter"
	"github.com/ndf-zz/caprica/pkg/service/queue"
	"github.com/ndf-zz/caprica/pkg/unt4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 2 * time.Second
	sourceName      = "api"
)

// StatusSource provides the presenter state.
type StatusSource interface {
	Snapshot() presenter.Snapshot
}

// Queue is the update queue as the API sees it.
type Queue interface {
	readers.Pusher
	Stats() queue.Stats
}

// ConnectionCounter reports listener activity.
type ConnectionCounter interface {
	Connections() int
	Accepted() uint64
}

type Options struct {
	Clock      clockwork.Clock
	Presenter  StatusSource
	Queue      Queue
	Acceptor   ConnectionCounter
	Sources    func() []string
	Listen     string
	AllowedIPs []string
	// MaxBodyBytes caps a POST /unt4 body. Defaults to
	// readers.DefaultMaxFrameBytes.
	MaxBodyBytes int
}

type Server struct {
	clock   clockwork.Clock
	opts    Options
	limiter *middleware.IPRateLimiter
	router  chi.Router
	started time.Time
}

func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxBodyBytes < 1 {
		opts.MaxBodyBytes = readers.DefaultMaxFrameBytes
	}

	s := &Server{
		clock:   opts.Clock,
		opts:    opts,
		limiter: middleware.NewIPRateLimiter(opts.Clock),
		started: opts.Clock.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(middleware.HTTPIPFilterMiddleware(middleware.NewIPFilter(s.opts.AllowedIPs)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	r.Get(models.PathStatus, s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))
		r.Post(models.PathUNT4, s.handleUNT4)
		r.Post(models.PathText, s.handleText)
		r.Post(models.PathReading, s.handleReading)
		r.Post(models.PathClear, s.handleClear)
	})

	return r
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts the server
// down gracefully. ln is closed on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("status api listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	})
	g.Go(func() error {
		s.limiter.RunCleanup(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck // already wrapped above
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := models.StatusResponse{
		Started: s.started,
		Version: config.AppVersion,
		Listen:  s.opts.Listen,
		Sources: []string{},
	}
	if s.opts.Presenter != nil {
		resp.Display = s.opts.Presenter.Snapshot()
	}
	if s.opts.Queue != nil {
		resp.Queue = s.opts.Queue.Stats()
	}
	if s.opts.Acceptor != nil {
		resp.Connections = s.opts.Acceptor.Connections()
		resp.Accepted = s.opts.Acceptor.Accepted()
	}
	if s.opts.Sources != nil {
		resp.Sources = s.opts.Sources()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUNT4 queues the frames in a raw protocol body.
func (s *Server) handleUNT4(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.opts.MaxBodyBytes)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body", nil)
		return
	}

	feeder := readers.NewFeeder(sourceName, s.opts.Queue, s.opts.MaxBodyBytes, s.clock)
	res, err := feeder.Feed(body)
	feeder.Reset()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result := models.QueueResult{
		RequestID: chimiddleware.GetReqID(r.Context()),
		Queued:    res.Queued,
		Dropped:   res.Dropped,
		Malformed: res.Malformed,
	}
	switch {
	case res.Queued == 0 && res.Dropped == 0:
		writeError(w, http.StatusBadRequest, "no valid frame in body", nil)
	case res.Dropped > 0:
		writeJSON(w, http.StatusServiceUnavailable, result)
	default:
		writeJSON(w, http.StatusAccepted, result)
	}
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req models.TextRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	p := unt4.NewText(req.Header, req.Column, req.Row, req.Text, req.Erase)
	s.push(w, r, p)
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	var req models.ReadingRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	p := unt4.NewValue(req.Tag, strconv.FormatFloat(*req.Value, 'f', -1, 64))
	s.push(w, r, p)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.push(w, r, unt4.NewClear())
}

func (s *Server) push(w http.ResponseWriter, r *http.Request, p unt4.Packet) {
	result := models.QueueResult{RequestID: chimiddleware.GetReqID(r.Context())}
	if s.opts.Queue.Push(queue.PacketItem(p.Fold(), s.clock.Now())) {
		result.Queued = 1
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	result.Dropped = 1
	writeJSON(w, http.StatusServiceUnavailable, result)
}

func decodeRequest[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4096))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large", nil)
		return false
	}

	err = validation.ValidateAndUnmarshal(body, dest)
	if err == nil {
		return true
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid request", verr)
	case errors.Is(err, validation.ErrMissingParams):
		writeError(w, http.StatusBadRequest, "missing request body", nil)
	default:
		writeError(w, http.StatusBadRequest, "invalid json", nil)
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write api response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details *validation.Error) {
	writeJSON(w, status, models.ErrorResponse{Error: msg, Details: details})
}

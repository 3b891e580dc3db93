/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the local diagnostics API: health, recent
// logs, what is on screen, and cache activity. It binds to loopback;
// field technicians reach it through a port forward.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/logbuffer"
	"github.com/ayushbirla71/adupApp/internal/playlist"
	"github.com/ayushbirla71/adupApp/internal/telemetry"
)

// NowPlayingSource reports what is currently on screen.
type NowPlayingSource interface {
	Current() *playlist.Asset
}

// Server is the diagnostics HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logBuf     *logbuffer.Buffer
	bus        *events.Bus
	nowPlaying NowPlayingSource
	logger     zerolog.Logger

	mu            sync.RWMutex
	tickerText    string
	lastReconcile events.Payload
	downloads     map[string]events.Payload

	bgCancel context.CancelFunc
}

// New constructs the server and wires its routes.
func New(addr string, logBuf *logbuffer.Buffer, bus *events.Bus, nowPlaying NowPlayingSource, logger zerolog.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logBuf:     logBuf,
		bus:        bus,
		nowPlaying: nowPlaying,
		logger:     logger.With().Str("component", "server").Logger(),
		downloads:  make(map[string]events.Payload),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeadersMiddleware)
	s.router.Use(telemetry.MetricsMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.configureRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins serving and watching bus events. It returns immediately;
// listen errors are reported on errCh.
func (s *Server) Start(errCh chan<- error) {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	go s.watchBus(ctx)

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("diagnostics server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/logs", s.handleLogs)
		r.Get("/logs/stats", s.handleLogStats)
		r.Get("/now-playing", s.handleNowPlaying)
		r.Get("/downloads", s.handleDownloads)
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Descending: q.Get("order") != "asc",
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		params.Limit = n
	} else {
		params.Limit = 200
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		params.Since = t
	}

	writeJSON(w, map[string]any{"logs": s.logBuf.Query(params)})
}

func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logBuf.Stats())
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ticker := s.tickerText
	s.mu.RUnlock()

	resp := map[string]any{"playing": false, "ticker": ticker}
	if s.nowPlaying != nil {
		if cur := s.nowPlaying.Current(); cur != nil {
			resp["playing"] = true
			resp["file"] = cur.FileName
			resp["kind"] = string(cur.Kind)
			resp["content_id"] = cur.ContentID
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	active := make([]events.Payload, 0, len(s.downloads))
	for _, p := range s.downloads {
		active = append(active, p)
	}
	last := s.lastReconcile
	s.mu.RUnlock()

	writeJSON(w, map[string]any{
		"active":         active,
		"last_reconcile": last,
	})
}

// watchBus keeps the download and reconcile views current.
func (s *Server) watchBus(ctx context.Context) {
	started := s.bus.Subscribe(events.EventDownloadStarted)
	progress := s.bus.Subscribe(events.EventDownloadProgress)
	completed := s.bus.Subscribe(events.EventDownloadCompleted)
	failed := s.bus.Subscribe(events.EventDownloadFailed)
	reconciled := s.bus.Subscribe(events.EventReconcileDone)
	ticker := s.bus.Subscribe(events.EventTickerUpdate)
	defer func() {
		s.bus.Unsubscribe(events.EventDownloadStarted, started)
		s.bus.Unsubscribe(events.EventDownloadProgress, progress)
		s.bus.Unsubscribe(events.EventDownloadCompleted, completed)
		s.bus.Unsubscribe(events.EventDownloadFailed, failed)
		s.bus.Unsubscribe(events.EventReconcileDone, reconciled)
		s.bus.Unsubscribe(events.EventTickerUpdate, ticker)
	}()

	for {
		select {
		case p := <-started:
			s.setDownload(p)
		case p := <-progress:
			s.setDownload(p)
		case p := <-completed:
			s.clearDownload(p)
		case p := <-failed:
			s.clearDownload(p)
		case p := <-reconciled:
			s.mu.Lock()
			s.lastReconcile = p
			s.mu.Unlock()
		case p := <-ticker:
			if text, ok := p["text"].(string); ok {
				s.mu.Lock()
				s.tickerText = text
				s.mu.Unlock()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) setDownload(p events.Payload) {
	file, ok := p["file"].(string)
	if !ok {
		return
	}
	s.mu.Lock()
	s.downloads[file] = p
	s.mu.Unlock()
}

func (s *Server) clearDownload(p events.Payload) {
	file, ok := p["file"].(string)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.downloads, file)
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Package api serves a read-only HTTP view of a running host on a loopback
// address: health, coordinator counters, recent events and the journal.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nidvy/host/internal/coordinator"
	"github.com/nidvy/host/internal/events"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
)

// StatusSource reports coordinator counters.
type StatusSource interface {
	Stats() coordinator.Stats
}

// EventSource is the host event hub.
type EventSource interface {
	SnapshotSince(lastID int64) []events.Event
	Subscribe() (<-chan events.Event, func())
}

// JournalReader reads back dispatched commands.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// Token, when set, is required as a bearer token on every route but
	// /healthz.
	Token string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	status    StatusSource
	events    EventSource
	journal   JournalReader
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Server. journal may be nil when journaling is off.
func New(config Config, status StatusSource, events EventSource, journal JournalReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.WithComponent("api")
	}
	return &Server{
		config:    config,
		status:    status,
		events:    events,
		journal:   journal,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		if s.config.Token != "" {
			r.Use(s.authMiddleware)
		}
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Get("/events/stream", s.handleEventStream)
		r.Get("/journal", s.handleJournal)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

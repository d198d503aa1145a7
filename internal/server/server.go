// Package server exposes the HTTP surface of the HostPulse agent:
// live stats and process queries, journal tailing, CSV/PDF snapshot
// export, threshold management, a websocket live feed, and the
// embedded dashboard page.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/doughall/hostpulse/internal/alerts"
	"github.com/doughall/hostpulse/internal/journal"
	"github.com/doughall/hostpulse/internal/snapshot"
)

// SnapshotSource produces on-demand readings for the API handlers.
// *snapshot.Builder satisfies it; tests substitute fakes.
type SnapshotSource interface {
	Build(ctx context.Context) (*snapshot.Stats, error)
	TopProcesses(ctx context.Context, n int) ([]snapshot.ProcessSample, error)
}

// Server is the agent's HTTP server.
type Server struct {
	source  SnapshotSource
	journal *journal.Journal
	store   *alerts.Store
	hub     *Hub
	logger  *slog.Logger
	httpSrv *http.Server
}

// New creates the server over its collaborators. The hub may be nil
// when the live feed is not wanted (tests).
func New(addr string, source SnapshotSource, j *journal.Journal, store *alerts.Store, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		source:  source,
		journal: j,
		store:   store,
		hub:     hub,
		logger:  logger.With(slog.String("component", "server")),
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/processes", s.handleProcesses)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/thresholds", s.handleGetThresholds)
	mux.HandleFunc("POST /api/thresholds", s.handleUpdateThresholds)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWS)
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

// Start begins serving in a background goroutine. Listen errors other
// than a clean close are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests, honoring the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpSrv.Shutdown(ctx)
}

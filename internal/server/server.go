// Package server wires the router, the middleware chain and the background
// session sweeper, and runs the HTTP server until a shutdown signal.
//
// ROUTES:
//
//	GET  /healthz  → database ping
//	GET  /metrics  → Prometheus scrape endpoint
//	*    /*        → the site dispatcher (pages, assets, JSON commands)
//
// Every route runs behind RequestID, RealIP, Recoverer, the access log and
// the status-code metrics, in that order.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/metrics"
	"github.com/sakif/fluxgate/internal/middleware"
)

// shutdownGrace is how long in-flight requests get to finish.
const shutdownGrace = 30 * time.Second

// Config holds the listener settings.
type Config struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Pinger reports whether the database is reachable. *sqlite.DB implements it.
type Pinger interface {
	Ping() error
}

// Sweeper deletes expired sessions. *auth.SessionManager implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Deps are the already-built components the server routes to. The caller
// owns them and closes the database after Start returns.
type Deps struct {
	DB       Pinger
	Sessions interface {
		auth.SessionValidator
		Sweeper
	}
	Site     http.Handler
	Recorder metrics.Recorder
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the application.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

// New builds the router. It does not start listening.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.deps.Recorder))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.deps.Gatherer))

	site := auth.OptionalSession(s.deps.Sessions)(s.deps.Site)
	s.router.Handle("/", site)
	s.router.Handle("/*", site)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.DB.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for up
// to 30 seconds. The session sweeper runs for the lifetime of the server.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go s.runSweeper(sweepCtx, s.config.SweepInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// runSweeper deletes expired sessions every interval until ctx ends.
func (s *Server) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	n, err := s.deps.Sessions.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Debug("expired sessions removed", slog.Int64("count", n))
	}
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/osm-versailles/internal/cache"
	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/queries"
	"github.com/osm-versailles/internal/reconcile"
	"github.com/osm-versailles/internal/web/handlers"
	"github.com/osm-versailles/internal/web/middleware"
)

// Dependencies are the services the HTTP handlers use. Cache, Metrics and
// Checks are optional.
type Dependencies struct {
	Store      queries.Store
	Reconciler *reconcile.Reconciler
	Cache      *cache.QueryCache
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *zerolog.Logger
	Checks     map[string]handlers.HealthCheck
}

// Server represents the web server
type Server struct {
	config     Config
	deps       Dependencies
	logger     *zerolog.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(cfg Config, deps Dependencies) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	queryHandler := &handlers.QueryHandler{Store: s.deps.Store, Cache: s.deps.Cache, Metrics: s.deps.Metrics}
	reconcileHandler := &handlers.ReconcileHandler{Reconciler: s.deps.Reconciler, Metrics: s.deps.Metrics}
	healthHandler := &handlers.HealthHandler{Checks: s.deps.Checks}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/queries", queryHandler.ListQueries).Methods("GET", "OPTIONS")
	api.HandleFunc("/queries/{name}", queryHandler.RunQuery).Methods("GET", "OPTIONS")
	api.HandleFunc("/stats", queryHandler.GetStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/reconcile", reconcileHandler.Reconcile).Methods("GET", "OPTIONS")

	s.router.HandleFunc("/healthz", healthHandler.Health).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	s.router.Use(middleware.RequestLogging(s.logger, s.deps.Metrics))
	s.router.Use(middleware.CORS())
	api.Use(mux.MiddlewareFunc(middleware.Authentication(s.config.APIKey)))
}

// Start serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/config"
	"github.com/raaihank/wellmatch/internal/events"
	"github.com/raaihank/wellmatch/internal/logger"
	"github.com/raaihank/wellmatch/internal/match"
)

// Querier answers closest-match queries
type Querier interface {
	Query(ctx context.Context, input match.Vector, k int) (*app.Result, error)
	Info() app.Info
}

// Server exposes a Querier over HTTP
type Server struct {
	config  config.ServerConfig
	logger  *logger.Logger
	querier Querier
	limiter *clientLimiter
	hub     *events.Hub
	stopHub context.CancelFunc
	router  *mux.Router
	server  *http.Server
	version string
	started time.Time
}

// New creates a new HTTP server
func New(cfg config.ServerConfig, querier Querier, log *logger.Logger, version string) *Server {
	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		querier: querier,
		router:  mux.NewRouter(),
		version: version,
		started: time.Now(),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	if cfg.Events.Enabled {
		s.hub = events.NewHub(events.Config{
			Username:   cfg.Events.Username,
			Password:   cfg.Events.Password,
			BufferSize: cfg.Events.BufferSize,

			TrustProxyHeaders: cfg.TrustProxyHeaders,
		}, log.WithComponent("events").Logger)
		ctx, cancel := context.WithCancel(context.Background())
		s.stopHub = cancel
		go s.hub.Run(ctx)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Registered on the root router so a wrong method yields 405
	s.router.Handle("/v1/match", s.limited(s.handleMatch)).Methods(http.MethodPost)
	if s.hub != nil {
		s.router.Handle("/v1/events", s.limited(s.hub.HandleWebSocket)).Methods(http.MethodGet)
	}
}

// limited applies the per-client rate limit when it is enabled
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.rateLimitMiddleware(h)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting wellmatch server",
		zap.Int("port", s.config.Port),
		zap.Bool("rate_limit", s.limiter != nil),
		zap.Bool("events", s.hub != nil))

	if s.limiter != nil {
		go s.limiter.run(time.Minute, 3*time.Minute)
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping wellmatch server")
	if s.limiter != nil {
		s.limiter.stop()
	}
	err := s.server.Shutdown(ctx)
	if s.stopHub != nil {
		s.stopHub()
	}
	return err
}

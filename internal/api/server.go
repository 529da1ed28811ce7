// Package api serves the ArbLens HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

const serviceName = "ArbLens API"

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// Submitter queues a backtest for asynchronous processing
type Submitter interface {
	Submit(ctx context.Context, backtestID uuid.UUID, spec models.BacktestSpec) error
}

// Dependencies holds everything the handlers need. Repositories and DB are
// nil when no database is configured.
type Dependencies struct {
	Config       *config.Config
	Logger       *logrus.Logger
	DB           Pinger
	Repositories *repository.Repositories
	Submitter    Submitter
	Metrics      http.Handler
}

// Server wires the router, handlers and the underlying http.Server
type Server struct {
	cfg    *config.Config
	logger *logrus.Logger
	audit  *logger.AuditLogger
	db     Pinger
	repos  *repository.Repositories
	submit Submitter
	cache  *cache.Cache
	now    func() time.Time

	router chi.Router
	server *http.Server
}

// NewServer builds the API server and its routes
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	log := deps.Logger
	if log == nil {
		log = logrus.New()
	}
	if deps.Repositories != nil && deps.Submitter == nil {
		return nil, fmt.Errorf("submitter is required when repositories are configured")
	}

	ttl := deps.Config.Server.StatsCacheTTL
	s := &Server{
		cfg:    deps.Config,
		logger: log,
		audit:  logger.NewAuditLogger(log),
		db:     deps.DB,
		repos:  deps.Repositories,
		submit: deps.Submitter,
		cache:  cache.New(ttl, 2*ttl+time.Minute),
		now:    time.Now,
	}
	s.router = s.routes(deps.Metrics)
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	if metricsHandler != nil && s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/opportunities", s.handleListOpportunities)
			r.Get("/opportunities/{id}", s.handleGetOpportunity)
			r.Get("/venues", s.handleListVenues)
			r.Get("/markets", s.handleListMarkets)
			r.Get("/stats", s.handleStats)

			r.Post("/backtests", s.handleCreateBacktest)
			r.Get("/backtests", s.handleListBacktests)
			r.Get("/backtests/{id}", s.handleGetBacktest)
		})
	})

	// Long-lived; no request timeout
	r.Get("/api/v1/backtests/{id}/stream", s.handleBacktestStream)

	return r
}

// Start listens on the configured port until ctx is cancelled or Shutdown is called
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.cfg.Server.Port).Info("API server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}

// requireDB writes the unconfigured-database error when no repositories are available
func (s *Server) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if s.repos != nil {
		return true
	}
	s.respondError(w, r, http.StatusInternalServerError, "Database URL not configured", nil)
	return false
}

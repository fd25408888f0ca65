// Package server provides the HTTP server and routing for the quant engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/di"
	analysishandlers "github.com/aristath/sentinel-quant/internal/modules/analysis/handlers"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	backtesthandlers "github.com/aristath/sentinel-quant/internal/modules/backtest/handlers"
	riskhandlers "github.com/aristath/sentinel-quant/internal/modules/risk/handlers"
)

// DefaultRequestTimeout bounds non-streaming requests. Backtests over a cold cache
// fetch every ticker, so it is generous.
const DefaultRequestTimeout = 5 * time.Minute

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	RequestTimeout time.Duration
	PriceSource    string
	Engine         config.EngineDefaults
	Container      *di.Container    // DI container with all services
	Jobs           *di.JobInstances // Optional, enables /api/jobs triggers
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	requestTimeout time.Duration
	engine         config.EngineDefaults
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	var breaker func() string
	if cfg.Container.YahooClient != nil {
		breaker = cfg.Container.YahooClient.BreakerState
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		requestTimeout: cfg.RequestTimeout,
		engine:         cfg.Engine,
		container:      cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Container.Databases(),
			cfg.Container.Scheduler,
			cfg.Jobs.All(),
			cfg.PriceSource,
			breaker,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// No WriteTimeout: SSE and websocket connections stay open, and the timeout
	// middleware bounds everything else.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout, except for long-lived streams
	s.router.Use(timeoutUnlessStreaming(s.requestTimeout))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.systemHandlers.HandleHealth)
	if c.Metrics != nil {
		s.router.Handle("/metrics", c.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)

		// Events stream (SSE)
		r.Get("/events/stream", NewEventsStreamHandler(c.EventBus, s.log).ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.systemHandlers.HandleJobs)
			r.Post("/{name}", s.systemHandlers.HandleTriggerJob)
		})

		analysishandlers.NewHandler(c.AnalysisService, s.log).RegisterRoutes(r)
		riskhandlers.NewHandler(s.log).RegisterRoutes(r)
		backtesthandlers.NewHandler(c.BacktestService, s.applyEngineDefaults, s.log).RegisterRoutes(r)
	})
}

func (s *Server) applyEngineDefaults(cfg backtest.Config) backtest.Config {
	return s.engine.ApplyTo(cfg)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// timeoutUnlessStreaming applies middleware.Timeout to every request except
// websocket upgrades and the SSE stream
func timeoutUnlessStreaming(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		bounded := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStreaming(r) {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

func isStreaming(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, "/events/stream")
}

// Package server wires the approvals API routes and middleware onto a chi
// router and manages the HTTP server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/config"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	clientRate       = 3    // tokens per second
	clientCapacity   = 1000 // burst
	limiterPruneTick = 10 * time.Minute
)

// Server represents the HTTP server
type Server struct {
	server        *http.Server
	router        chi.Router
	handler       interfaces.HTTPHandler
	authenticator *auth.Authenticator
	limiter       *RateLimiter
	config        *config.Config
	stopCleanup   context.CancelFunc
}

// NewServer creates a new server instance. A nil authenticator leaves the
// admin routes answering 503.
func NewServer(cfg *config.Config, handler interfaces.HTTPHandler, authenticator *auth.Authenticator) *Server {
	if authenticator == nil {
		authenticator = auth.New(auth.Config{})
	}

	router := chi.NewRouter()
	limiter := NewRateLimiter(clientRate, clientCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	go limiter.RunCleanup(ctx, limiterPruneTick)

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		router:        router,
		handler:       handler,
		authenticator: authenticator,
		limiter:       limiter,
		config:        cfg,
		stopCleanup:   cancel,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func requestLogger() *slog.Logger {
	if svc := logging.DefaultLoggingService; svc != nil && svc.Logger != nil {
		return svc.Logger
	}
	return slog.Default()
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(BlockDirectAccessMiddleware) // Put BEFORE RealIPMiddleware to see original RemoteAddr
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(requestLogger()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "Last-Modified", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(metrics.Metrics)
	s.router.Use(s.limiter.Handler)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/approvals", h.ServeApprovals)
		r.Get("/approvals/stats", h.ServeStatistics)
		r.Get("/approvals/options", h.ServeOptions)
		r.Get("/approvals/export", h.ExportApprovals)
		r.Get("/approvals/{id}", h.FindApproval)

		r.With(auth.Optional(s.authenticator)).Post("/fetch", h.FetchApprovals)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.authenticator))

				r.Post("/logout", h.Logout)
				r.Post("/refresh", h.RefreshData)

				r.Get("/workspace/filters", h.GetWorkspaceFilters)
				r.Put("/workspace/filters", h.PutWorkspaceFilters)
				r.Post("/workspace/reset", h.ResetWorkspace)
				r.Get("/workspace/approvals", h.ServeWorkspaceApprovals)
				r.Get("/workspace/export", h.ExportWorkspace)

				r.Post("/upload", h.UploadDataset)
				r.Delete("/upload", h.ClearUpload)

				r.Post("/email/preview", h.PreviewEmail)
				r.Post("/email", h.SendReportEmail)
				r.Post("/email/dispatch", h.DispatchEmail)
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.stopCleanup()

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hongminglow/iptrack-be/internal/config"
	"github.com/hongminglow/iptrack-be/internal/http/handlers"
	"github.com/hongminglow/iptrack-be/internal/middleware"
	"github.com/hongminglow/iptrack-be/internal/service"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Auth     *service.AuthService
	Tracking *service.TrackingService
	Health   handlers.Pinger
	Logger   *slog.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// NewRouter builds the route tree. It is separate from New so tests can serve it directly.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	bearer := middleware.RequireBearer(deps.Auth, logger)
	authHandler := handlers.NewAuthHandler(deps.Auth, logger)
	trackingHandler := handlers.NewTrackingHandler(deps.Tracking, logger)

	handlers.NewHealthHandler(time.Now(), deps.Health, logger).Register(r)
	authHandler.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(bearer)
		authHandler.RegisterProtected(r)
	})

	r.Group(func(r chi.Router) {
		if cfg.ProtectTracking {
			r.Use(bearer)
		}
		trackingHandler.Register(r)
	})

	return r
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	return &Server{inner: &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

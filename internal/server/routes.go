package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/appid"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/admit", s.limiter.Admit)
		r.Get("/usage", s.limiter.Usage)
	})

	s.router.Get("/health", handlers.ScopeHandler(handlers.ScopeAll))
	s.router.Get("/health/live", handlers.ScopeHandler(handlers.ScopeLive))
	s.router.Get("/health/ready", handlers.ScopeHandler(handlers.ScopeReady))
	s.router.Get("/health/startup", handlers.ScopeHandler(handlers.ScopeStartup))

	s.router.Get("/version", handlers.VersionHandler)

	// Served here rather than in handlers so it can reach HandleError.
	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminEndpoint()
}

// registerAdminEndpoint mounts /admin/signal when <PREFIX>ADMIN_TOKEN is set.
func (s *Server) registerAdminEndpoint() {
	identity, _ := appid.Get(context.Background())
	envPrefix := appid.Default().EnvPrefix
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}

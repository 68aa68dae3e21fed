package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/server/handlers"
	servermw "github.com/quotagate/quotagate/internal/server/middleware"
)

// Options tunes the HTTP server. Zero values fall back to defaults.
type Options struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxAdmitTimeout time.Duration
}

// Server is the HTTP front end for a shared rate limiter.
type Server struct {
	router  *chi.Mux
	mu      sync.Mutex
	server  *http.Server
	host    string
	port    int
	opts    Options
	limiter *handlers.LimiterHandlers
}

// New creates a server that admits requests against limiter.
func New(host string, port int, limiter handlers.Limiter, opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		host:    host,
		port:    port,
		opts:    opts.withDefaults(),
		limiter: handlers.NewLimiterHandlers(limiter, opts.MaxAdmitTimeout),
	}

	if hm := handlers.GetHealthManager(); hm != nil {
		hm.RegisterChecker("limiter", s.limiter)
	}

	s.registerRoutes()

	return s
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 120 * time.Second
	}
	// WriteTimeout stays zero unless set: admits may block for a full window.
	return o
}

// Start listens on the configured host and port until Shutdown.
func (s *Server) Start(base context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return err
	}
	return s.Serve(base, ln)
}

// Serve accepts connections on ln until Shutdown. Requests inherit base, so
// cancelling it aborts every waiting admission.
func (s *Server) Serve(base context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	if base != nil {
		s.server.BaseContext = func(net.Listener) context.Context { return base }
	}
	httpServer := s.server
	s.mu.Unlock()

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.Duration("max_admit_timeout", s.opts.MaxAdmitTimeout))
	}

	return httpServer.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.server
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return httpServer.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

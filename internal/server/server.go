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

	"github.com/sundayezeilo/repocatalog/internal/config"
	"github.com/sundayezeilo/repocatalog/internal/httpx"
	"github.com/sundayezeilo/repocatalog/internal/repository"
)

const defaultServiceName = "repocatalog"

// Counter reports how many records are held. repository.Store satisfies it.
type Counter interface {
	Len() int
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	handler *repository.Handler
	counter Counter
	server  *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, handler *repository.Handler, counter Counter) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
		counter: counter,
	}
}

// Handler returns the fully routed and middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var reason string
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		reason = sig.String()

	case <-ctx.Done():
		reason = ctx.Err().Error()
	}

	s.logger.Info("received shutdown signal", "signal", reason)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	validID := httpx.ValidateUUID(repository.IDPathParam, repository.InvalidIDMessage)

	mux.HandleFunc("GET /repositories", s.handler.ListRepositories)
	mux.HandleFunc("POST /repositories", s.handler.CreateRepository)
	mux.Handle("PUT /repositories/{id}", validID(http.HandlerFunc(s.handler.UpdateRepository)))
	mux.Handle("DELETE /repositories/{id}", validID(http.HandlerFunc(s.handler.DeleteRepository)))
	mux.Handle("POST /repositories/{id}/like", validID(http.HandlerFunc(s.handler.LikeRepository)))

	// Identifiers are checked on every method and sub-path before falling back.
	mux.HandleFunc("/repositories", methodNotAllowed)
	mux.Handle("/repositories/{id}", validID(http.HandlerFunc(methodNotAllowed)))
	mux.Handle("/repositories/{id}/{rest...}", validID(http.HandlerFunc(routeNotFound)))
	mux.HandleFunc("/", routeNotFound)

	return mux
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "not_found", "Cannot "+r.Method+" "+r.URL.Path, nil)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Cannot "+r.Method+" "+r.URL.Path, nil)
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger),       // Outermost: catch panics
		httpx.RequestID,                // Add request ID
		httpx.Tracing(s.serviceName()), // Server span per request
		httpx.Logger(s.logger),         // Log requests
		httpx.CORS(nil),                // Any origin may call the API
	)(handler)
}

func (s *Server) serviceName() string {
	if name := s.config.Observability.ServiceName; name != "" {
		return name
	}
	return defaultServiceName
}

type healthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	Repositories int    `json:"repositories"`
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Service: s.serviceName(),
		Version: s.config.Observability.ServiceVersion,
	}
	if s.counter != nil {
		resp.Repositories = s.counter.Len()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}

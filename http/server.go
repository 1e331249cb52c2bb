// Package http serves the prediction API, the frontend assets and the
// operational endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wraps the configured http.Server.
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig holds the listener and request policy.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	RateLimit      float64
	Burst          int
	MaxBodyBytes   int64
}

// DefaultServerConfig returns the settings used when none are configured.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8000,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
	}
}

// NewHandler builds the routed handler with its middleware chain.
func NewHandler(config ServerConfig, deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, deps,
		RateLimitMiddleware(config.RateLimit, config.Burst),
		Chain(
			TimeoutMiddleware(config.Timeout),
			RequestSizeMiddleware(config.MaxBodyBytes),
		),
	)

	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger, deps.Requests),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
	)
	return chain(mux)
}

// NewServer configures a server listening on config.Port.
func NewServer(config ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// The write timeout leaves room for the handler timeout to answer first.
	writeTimeout := config.Timeout
	if writeTimeout > 0 {
		writeTimeout += 5 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config, deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

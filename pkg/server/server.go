package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/telemetry/health"
	"mercator-hq/quotaguard/pkg/telemetry/metrics"
	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// UsageSource is the view of the throttle registry the server needs.
type UsageSource interface {
	Get(serviceType string) (*throttle.Throttle, error)
	Snapshots() []throttle.Snapshot
	FlushAll(ctx context.Context) error
	History(ctx context.Context, serviceType string, from, to time.Time) ([]storage.DailyUsageRecord, error)
}

// VersionInfo is reported by GET /version.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options carries the collaborators of a Server. Usage is required.
type Options struct {
	Usage UsageSource

	// Health backs /health and /ready. A checker without checks is used
	// when nil.
	Health *health.Checker

	// Metrics backs the metrics route and HTTP request metrics. The route is
	// not registered when nil or disabled.
	Metrics *metrics.Collector

	// MetricsPath is where metrics are served.
	// Default: "/metrics"
	MetricsPath string

	// Tracer creates one span per request. A no-op tracer is used when nil.
	Tracer trace.Tracer

	Version VersionInfo
	Logger  *slog.Logger
}

// Server is the HTTP surface of the throttle service.
type Server struct {
	config       config.ServerConfig
	opts         Options
	logger       *slog.Logger
	handler      http.Handler
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
	now          func() time.Time
}

// New creates a server. The handler is built eagerly so it can be exercised
// without a listener.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Health == nil {
		opts.Health = health.New(0)
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultPrometheusPath
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		opts:   opts,
		logger: logger.With("component", "server"),
		now:    time.Now,
	}
	s.handler = s.setupRoutes()
	return s
}

// Start listens on the configured address and blocks until ctx is cancelled
// or the listener fails. Cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.addr = listener.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server within the configured shutdown
// timeout. Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.opts.Health.LivenessHandler())
	mux.HandleFunc("GET /ready", s.opts.Health.ReadinessHandler())
	mux.HandleFunc("GET /version", health.VersionHandler(
		s.opts.Version.Version, s.opts.Version.Commit, s.opts.Version.BuildTime))

	mux.HandleFunc("GET /v1/usage", s.handleListUsage)
	mux.HandleFunc("GET /v1/usage/{service}", s.handleGetUsage)
	mux.HandleFunc("GET /v1/usage/{service}/history", s.handleHistory)
	mux.HandleFunc("POST /v1/usage/flush", s.handleFlush)

	var httpMetrics *metrics.HTTPMetrics
	if s.opts.Metrics != nil && s.opts.Metrics.Enabled() {
		mux.Handle("GET "+s.opts.MetricsPath, s.opts.Metrics.Handler())
		httpMetrics = s.opts.Metrics.HTTP()
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger, httpMetrics)(handler)
	handler = tracingMiddleware(s.opts.Tracer)(handler)
	handler = requestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = recoveryMiddleware(s.logger)(handler)

	return handler
}

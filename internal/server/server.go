// Package server exposes the wallboard over HTTP: a JSON API on gin plus
// live event streams over SSE and WebSocket.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/journal"
	"github.com/zulandar/wallboard/internal/wallboard"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "Agent Wallboard Backend"

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Service *wallboard.Service
	Journal *journal.Journal // optional; history endpoint answers 503 without it
	Config  config.ServerConfig
	Version string
	Logger  *slog.Logger
	Out     io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Config.Port <= 0 {
		opts.Config.Port = config.DefaultPort
	}

	addr := fmt.Sprintf(":%d", opts.Config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Wallboard API listening on http://localhost:%d\n", opts.Config.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with middleware and every route wired.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("server: service is required")
	}
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	h := &handler{
		svc:     opts.Service,
		journal: opts.Journal,
		cfg:     opts.Config,
		version: opts.Version,
		logger:  logger.With("component", "http"),
		started: time.Now(),
	}
	h.upgrader = newUpgrader(opts.Config.FrontendURL)

	router.Use(requestLogger(h.logger))
	router.Use(gin.CustomRecovery(h.recover))
	router.Use(corsMiddleware(opts.Config.FrontendURL))

	registerRoutes(router, h)
	return router, nil
}

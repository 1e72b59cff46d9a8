package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/api"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/deployer"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/metrics"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/orchestrator"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/registry"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDeployerError   = 3
	ExitHTTPServerError = 4
)

// ServerError wraps errors with exit codes.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Server
// =============================================================================

// Server is the data flow server with all its dependencies.
type Server struct {
	config       *Config
	logger       *slog.Logger
	store        *store.SQLiteStore
	closeBackend func() error
	httpServer   *http.Server
}

// NewServer creates a server with all dependencies wired up.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      fmt.Errorf("failed to open database: %w", err),
			ExitCode: ExitDatabaseError,
		}
	}

	deployers, closeBackend, err := deployer.NewFromConfig(deployer.Config{
		Backend:    cfg.Deployer.Backend,
		DockerHost: cfg.Docker.Host,
	}, logger)
	if err != nil {
		st.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      fmt.Errorf("failed to create deployer backend: %w", err),
			ExitCode: ExitDeployerError,
		}
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	orch := orchestrator.New(st, deployers, m, logger)
	reg := registry.NewService(st, orch, registry.NewHTTPFetcher(0), logger)

	handler := api.NewHandler(orch, reg, st,
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}), Version, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:       cfg,
		logger:       logger,
		store:        st,
		closeBackend: closeBackend,
		httpServer:   httpServer,
	}, nil
}

// Start runs the HTTP server until a signal or server error stops it.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting data flow server",
			"address", s.config.Server.Address(),
			"backend", s.config.Deployer.Backend,
			"version", Version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      fmt.Errorf("HTTP server failed: %w", err),
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	return s.Shutdown(context.Background())
}

// Shutdown drains in-flight requests and releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to shut down HTTP server", "error", err)
	}

	if err := s.closeBackend(); err != nil {
		s.logger.Error("failed to close deployer backend", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

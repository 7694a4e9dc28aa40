// Package daemon hosts the HTTP surface of the agent: health, metrics,
// tool schemas and the report-generation stream.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/reprolab/reproagent/internal/agent"
	"github.com/reprolab/reproagent/internal/config"
	"github.com/reprolab/reproagent/internal/llm/configbuilder"
	"github.com/reprolab/reproagent/internal/logging"
	"github.com/reprolab/reproagent/internal/observability"
	agentrpc "github.com/reprolab/reproagent/internal/rpc/agent"
	toolrpc "github.com/reprolab/reproagent/internal/rpc/tools"
	"github.com/reprolab/reproagent/internal/tools"
)

// Server hosts the daemon endpoints.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  agentrpc.Runner
	metrics *observability.Metrics
	tools   *tools.Registry
}

// NewServer constructs a daemon instance.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := configbuilder.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	metrics := observability.NewMetrics()

	// schema registry without todo tools: the per-run list does not
	// exist until a workflow session starts
	schemaReg, err := tools.BuildRegistry(cfg, cfg.Workspace.WorkingDir, nil, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}

	workflow := &agent.Workflow{
		Config:   cfg,
		Registry: registry,
		Logger:   logging.Component(logger, "workflow"),
		Metrics:  metrics,
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		runner:  &agentrpc.WorkflowRunner{Workflow: workflow, Logger: logging.Component(logger, "rpc")},
		metrics: metrics,
		tools:   schemaReg,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/tools/schemas", toolrpc.SchemaHandler{Registry: s.tools})

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	switch transport {
	case "ndjson":
		mux.Handle("/agent/report", agentrpc.NewHandler(s.runner, s.metrics))
	default:
		path, handler := agentrpc.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, handler)
		// keep the NDJSON path available alongside Connect
		mux.Handle("/agent/report", agentrpc.NewHandler(s.runner, s.metrics))
	}

	handler := http.Handler(mux)
	if transport != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting reproagent daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down reproagent daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/config"
	"github.com/JakeFAU/runwatch/internal/logging"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/telemetry"
)

// App holds the shared, long-lived services for one invocation: the
// resolved configuration, the logger, the metrics registry and the tracer
// provider. It is built once by the root command and closed after the
// command finishes.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	collectors *metrics.Collectors
	tracing    *telemetry.Provider
}

// NewApp builds the container from cfg. It fails fast if the logger, the
// metrics or the tracer provider cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		collectors: col,
	}

	if cfg.Telemetry.TracingEnabled {
		a.tracing, err = telemetry.NewProvider(ctx, cfg.Telemetry.ServiceName, logger)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		logger.Debug("tracing enabled", zap.String("service", cfg.Telemetry.ServiceName))
	}

	return a, nil
}

// GetConfig returns the resolved configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetRegistry returns the Prometheus registry served on /metrics.
func (a *App) GetRegistry() *prometheus.Registry {
	return a.registry
}

// GetMetrics returns the monitor and HTTP collectors.
func (a *App) GetMetrics() *metrics.Collectors {
	return a.collectors
}

// Tracer returns a named tracer; a no-op one when tracing is disabled.
func (a *App) Tracer(name string) trace.Tracer {
	return a.tracing.Tracer(name)
}

// Close flushes the tracer provider and the logger. It is called by a Cobra
// hook after the command finishes.
func (a *App) Close(ctx context.Context) {
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	// Sync on stderr returns EINVAL on some platforms; there is nowhere left to report it.
	_ = a.logger.Sync()
}

// Package server assembles a monitor, its view and the optional HTTP surface
// from the application container, and runs them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/runwatch/internal/api"
	"github.com/JakeFAU/runwatch/internal/config"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/monitor"
	"github.com/JakeFAU/runwatch/internal/seed"
	"github.com/JakeFAU/runwatch/internal/view"
	"github.com/JakeFAU/runwatch/internal/view/tui"
	"github.com/JakeFAU/runwatch/internal/watchdog"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Services are the long-lived dependencies a Runner draws on. *app.App is
// the production implementation.
type Services interface {
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetRegistry() *prometheus.Registry
	GetMetrics() *metrics.Collectors
	Tracer(name string) trace.Tracer
}

// Options selects how the page is shown.
//   - Out: where the line-oriented terminal view prints; stdout when nil.
//   - TUI: run the interactive bubbletea view instead.
type Options struct {
	Out io.Writer
	TUI bool
}

// Runner owns one monitor and everything attached to it.
type Runner struct {
	app       Services
	logger    *zap.Logger
	page      *view.Page
	monitor   *monitor.Monitor
	apiServer *api.Server
	title     string
	opts      Options
}

// Build seeds and wires a monitor from the container's configuration.
func Build(a Services, opts Options) (*Runner, error) {
	cfg := a.GetConfig()
	logger := a.GetLogger()

	category, err := cfg.Category()
	if err != nil {
		return nil, fmt.Errorf("monitor.category: %w", err)
	}
	initial, err := seed.InitialProgress(cfg.Monitor.InitialProgress, cfg.Monitor.InitialProgressFile)
	if err != nil {
		return nil, err
	}
	history, err := seed.History(cfg.Monitor.HistoryFile, category)
	if err != nil {
		return nil, err
	}
	streams, err := cfg.EventSource()
	if err != nil {
		return nil, err
	}

	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	page := view.NewPage(cfg.Log.MaxEntries)
	var v monitor.View = page
	if !opts.TUI {
		v = view.NewTerminal(opts.Out, page)
	}

	mon, err := monitor.New(monitor.Config{
		Initial:  initial,
		History:  history,
		Action:   cfg.Monitor.ActionURL,
		LogLimit: cfg.Log.MaxEntries,
		Watchdog: watchdog.Config{
			PollInterval: cfg.Watchdog.PollInterval,
			Timeout:      cfg.Watchdog.Timeout,
		},
		Streams: streams,
	}, v,
		monitor.WithLogger(logger),
		monitor.WithMetrics(a.GetMetrics()),
		monitor.WithTracer(a.Tracer("runwatch/monitor")),
	)
	if err != nil {
		return nil, fmt.Errorf("monitor init failed: %w", err)
	}

	r := &Runner{
		app:     a,
		logger:  logger,
		page:    page,
		monitor: mon,
		title:   string(category),
		opts:    opts,
	}
	if cfg.Server.Enabled {
		r.apiServer = api.NewServer(mon, page,
			api.WithLogger(logger),
			api.WithMetrics(a.GetMetrics(), a.GetRegistry()),
			api.WithTracer(a.Tracer("runwatch/api")),
			api.WithAPIKey(cfg.Server.APIKey),
		)
	}
	logger.Info("monitor built",
		zap.String("monitor_id", mon.ID()),
		zap.String("category", string(category)),
		zap.String("progress_url", streams.Endpoints.Progress),
		zap.Bool("server", cfg.Server.Enabled),
		zap.Bool("tui", opts.TUI),
	)
	return r, nil
}

// Page returns the page the monitor renders into.
func (r *Runner) Page() *view.Page {
	return r.page
}

// Monitor returns the wired monitor.
func (r *Runner) Monitor() *monitor.Monitor {
	return r.monitor
}

// Handler returns the HTTP handler, or nil when the server is disabled.
func (r *Runner) Handler() http.Handler {
	if r.apiServer == nil {
		return nil
	}
	return r.apiServer.Handler()
}

// Run blocks until ctx is cancelled, a signal arrives, the TUI quits or a
// component fails.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.monitor.Run(ctx)
	})

	if r.apiServer != nil {
		port := r.app.GetConfig().Server.Port
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r.apiServer.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		g.Go(func() error {
			r.logger.Info("http server started", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				r.logger.Error("server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	if r.opts.TUI {
		model := tui.New(r.title, r.page, r.monitor.Click)
		g.Go(func() error {
			defer stop()
			return tui.Run(ctx, model)
		})
	}

	err := g.Wait()
	r.logger.Info("shutdown complete")
	if err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}

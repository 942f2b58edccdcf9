package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/monitor"
	"github.com/JakeFAU/runwatch/internal/nextstep"
	"github.com/JakeFAU/runwatch/internal/view"
)

const (
	requestTimeout = 30 * time.Second
	probeTimeout   = 2 * time.Second
)

// Monitor is the subset of *monitor.Monitor the server drives.
type Monitor interface {
	Snapshot(ctx context.Context) (monitor.Status, error)
	Click(ctx context.Context) (string, error)
}

// Page exposes the rendered view state.
type Page interface {
	Snapshot() view.Snapshot
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request metrics into c and serves g on /metrics.
func WithMetrics(c *metrics.Collectors, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.collectors = c
		s.gatherer = g
	}
}

// WithTracer starts a span per request.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAPIKey requires key on every /v1 route.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// Server wires HTTP handlers to a monitor and its page.
type Server struct {
	router     chi.Router
	monitor    Monitor
	page       Page
	logger     *zap.Logger
	collectors *metrics.Collectors
	gatherer   prometheus.Gatherer
	tracer     trace.Tracer
	apiKey     string
}

// NewServer constructs a Server with middleware and routes.
func NewServer(mon Monitor, page Page, opts ...Option) *Server {
	s := &Server{
		monitor: mon,
		page:    page,
		logger:  zap.NewNop(),
		tracer:  noop.NewTracerProvider().Tracer("runwatch/api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("api")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.tracingMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.collectors.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))

	r.Route("/v1", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(apiKeyMiddleware(s.apiKey))
		}
		r.Get("/state", s.state)
		r.Post("/next-step", s.nextStep)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready while the monitor loop is answering.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	if _, err := s.monitor.Snapshot(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type stateResponse struct {
	Monitor monitor.Status `json:"monitor"`
	Page    view.Snapshot  `json:"page"`
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	st, err := s.monitor.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stateResponse{Monitor: st, Page: s.page.Snapshot()})
}

// nextStep clicks the control and redirects to its destination.
func (s *Server) nextStep(w http.ResponseWriter, r *http.Request) {
	dest, err := s.monitor.Click(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Location", dest)
	s.writeJSON(w, http.StatusSeeOther, map[string]string{"destination": dest})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, nextstep.ErrNotArmed):
		return http.StatusConflict
	case errors.Is(err, monitor.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

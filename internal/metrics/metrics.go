// Package metrics exposes Prometheus collectors for the run monitor.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors owns every monitor metric. A nil *Collectors is valid and
// records nothing, so components can run without a registry.
type Collectors struct {
	messagesTotal      *prometheus.CounterVec
	malformedTotal     *prometheus.CounterVec
	streamErrorsTotal  *prometheus.CounterVec
	livenessTotal      *prometheus.CounterVec
	logEntriesTotal    prometheus.Counter
	progressPercent    prometheus.Gauge
	heartbeatAlive     prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New registers the collectors against reg (the default registerer when nil).
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_messages_total",
			Help: "Stream messages received, labeled by channel.",
		}, []string{"channel"}),
		malformedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_malformed_messages_total",
			Help: "Stream messages dropped because they could not be decoded, labeled by channel.",
		}, []string{"channel"}),
		streamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_stream_errors_total",
			Help: "Subscription errors, labeled by channel and resulting ready state.",
		}, []string{"channel", "state"}),
		livenessTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_liveness_transitions_total",
			Help: "Heartbeat liveness edges, labeled by direction.",
		}, []string{"transition"}),
		logEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runwatch_log_entries_total",
			Help: "Log entries appended to the pane after duplicate suppression.",
		}),
		progressPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runwatch_progress_percent",
			Help: "Most recently rendered progress bar fill.",
		}),
		heartbeatAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runwatch_heartbeat_alive",
			Help: "1 while heartbeats arrive within the timeout, 0 after liveness is lost.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_http_requests_total",
			Help: "HTTP requests served, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runwatch_http_request_duration_seconds",
			Help:    "HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{
		c.messagesTotal,
		c.malformedTotal,
		c.streamErrorsTotal,
		c.livenessTotal,
		c.logEntriesTotal,
		c.progressPercent,
		c.heartbeatAlive,
		c.httpRequestsTotal,
		c.httpRequestSeconds,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register monitor collector: %w", err)
		}
	}
	c.heartbeatAlive.Set(1)
	return c, nil
}

// Handler returns an http.Handler exposing the gatherer's metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveMessage counts a decoded stream message.
func (c *Collectors) ObserveMessage(channel string) {
	if c == nil {
		return
	}
	c.messagesTotal.WithLabelValues(channel).Inc()
}

// ObserveMalformed counts a dropped payload.
func (c *Collectors) ObserveMalformed(channel string) {
	if c == nil {
		return
	}
	c.malformedTotal.WithLabelValues(channel).Inc()
}

// ObserveStreamError counts a subscription error.
func (c *Collectors) ObserveStreamError(channel, state string) {
	if c == nil {
		return
	}
	c.streamErrorsTotal.WithLabelValues(channel, state).Inc()
}

// ObserveLiveness records a liveness edge.
func (c *Collectors) ObserveLiveness(alive bool) {
	if c == nil {
		return
	}
	if alive {
		c.livenessTotal.WithLabelValues("recovered").Inc()
		c.heartbeatAlive.Set(1)
		return
	}
	c.livenessTotal.WithLabelValues("lost").Inc()
	c.heartbeatAlive.Set(0)
}

// ObserveLogEntry counts an appended log entry.
func (c *Collectors) ObserveLogEntry() {
	if c == nil {
		return
	}
	c.logEntriesTotal.Inc()
}

// SetProgress records the rendered bar fill.
func (c *Collectors) SetProgress(pct float64) {
	if c == nil {
		return
	}
	c.progressPercent.Set(pct)
}

// ObserveHTTPRequest records one served request.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.httpRequestSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

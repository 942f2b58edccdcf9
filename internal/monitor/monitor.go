// Package monitor is the page: it owns every piece of client state and folds
// the three event streams, the heartbeat watchdog and user actions into view
// updates on a single goroutine.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/clock"
	"github.com/JakeFAU/runwatch/internal/clock/system"
	"github.com/JakeFAU/runwatch/internal/eventsource"
	"github.com/JakeFAU/runwatch/internal/id/uuid"
	"github.com/JakeFAU/runwatch/internal/logpane"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/nextstep"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/watchdog"
)

// ErrStopped is returned by actions submitted after Run has returned.
var ErrStopped = errors.New("monitor is not running")

// View receives every visual change. Implementations are called from one
// goroutine at a time.
type View interface {
	HideBar()
	SetBarWidth(pct float64)
	SetBarMessage(msg string)
	SetBarColor(color string)
	SetLoading(on bool)
	AppendLog(e logpane.Entry)
	ReplaceLogs(entries []logpane.Entry)
	ClearLogs()
	ShowNextStep()
	SetNextStepEnabled(on bool)
	RevealNextStep()
	Navigate(dest string)
}

// flusher is implemented by views that batch output per loop iteration.
type flusher interface {
	Flush()
}

// Source produces deliveries from the three streams. eventsource.Manager is
// the production implementation.
type Source interface {
	Open(ctx context.Context) error
	Deliveries() <-chan eventsource.Delivery
	Close()
}

// Config seeds a Monitor.
//   - Initial: the progress snapshot rendered before any stream message.
//   - History: log lines rendered before any stream message.
//   - Action: base URL of the next-step navigation.
//   - LogLimit: retained log entries (unlimited when <= 0).
//   - Watchdog: heartbeat poll interval and timeout.
//   - Streams: subscription settings used when no Source option is given.
type Config struct {
	Initial  progress.Update
	History  []string
	Action   string
	LogLimit int
	Watchdog watchdog.Config
	Streams  eventsource.Config
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces the system clock used by the watchdog.
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithMetrics records activity into c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Monitor) {
		m.metrics = c
	}
}

// WithSource replaces the SSE manager built from Config.Streams.
func WithSource(src Source) Option {
	return func(m *Monitor) {
		m.source = src
	}
}

// WithTracer records a span per delivery, watchdog transition and click.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Monitor) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// Status is a point-in-time summary of the monitor's own state.
type Status struct {
	ID            string          `json:"id"`
	Progress      progress.Update `json:"progress"`
	BarEnabled    bool            `json:"barEnabled"`
	Alive         bool            `json:"alive"`
	Polling       bool            `json:"polling"`
	LastBeat      time.Time       `json:"lastBeat"`
	Loading       bool            `json:"loading"`
	NextStepShown bool            `json:"nextStepShown"`
	NextStepArmed bool            `json:"nextStepArmed"`
	LogEntries    int             `json:"logEntries"`
}

// Monitor is one live run page. Only the Run goroutine touches its state;
// other goroutines go through Click and Snapshot.
type Monitor struct {
	id      string
	cfg     Config
	view    View
	logger  *zap.Logger
	clock   clock.Clock
	metrics *metrics.Collectors
	tracer  trace.Tracer
	source  Source

	state    progress.State
	pane     *logpane.Pane
	watchdog *watchdog.Watchdog
	next     *nextstep.Controller
	loading  bool

	actions chan func()
	done    chan struct{}
	started atomic.Bool
}

// New builds a Monitor and renders the initial snapshot and log history into
// view. Streams are not opened until Run.
func New(cfg Config, view View, opts ...Option) (*Monitor, error) {
	if view == nil {
		return nil, errors.New("monitor view is required")
	}
	m := &Monitor{
		cfg:     cfg,
		view:    view,
		logger:  zap.NewNop(),
		clock:   system.New(),
		tracer:  noop.NewTracerProvider().Tracer("runwatch/monitor"),
		actions: make(chan func()),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	id, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("monitor id: %w", err)
	}
	m.id = id
	m.logger = m.logger.Named("monitor").With(zap.String("monitor_id", id))

	if m.source == nil {
		streams := cfg.Streams
		streams.Logger = m.logger.Named("eventsource")
		mgr, err := eventsource.NewManager(streams)
		if err != nil {
			return nil, fmt.Errorf("create event sources: %w", err)
		}
		m.source = mgr
	}

	m.state = progress.NewState(cfg.Initial)
	m.pane = logpane.NewPane(cfg.History, cfg.LogLimit)
	m.watchdog = watchdog.New(cfg.Watchdog, m.clock)
	m.next = nextstep.New(cfg.Action)
	m.seed()
	return m, nil
}

// ID returns the monitor instance ID.
func (m *Monitor) ID() string {
	return m.id
}

func (m *Monitor) seed() {
	if m.state.BarEnabled {
		var f progress.Frame
		m.state, f = progress.Restore(m.state)
		m.apply(f)
	} else {
		m.view.HideBar()
	}
	eff := m.next.Observe(m.cfg.Initial)
	m.applyEffect(eff)
	if eff.Disable {
		m.view.SetNextStepEnabled(false)
	}
	m.view.ReplaceLogs(m.pane.Entries())
	m.flush()
}

// Run opens the streams and processes deliveries, watchdog polls and queued
// actions until ctx is cancelled. The watchdog is stopped and every stream is
// closed before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("monitor already running")
	}
	defer close(m.done)

	if err := m.source.Open(ctx); err != nil {
		return fmt.Errorf("open event sources: %w", err)
	}
	defer m.teardown()

	m.logger.Info("monitor started", zap.String("status", string(m.state.LastGood.Status)))
	deliveries := m.source.Deliveries()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-deliveries:
			m.handle(ctx, d)
		case <-m.watchdog.C():
			m.poll(ctx)
		case fn := <-m.actions:
			fn()
		}
		m.flush()
	}
}

func (m *Monitor) teardown() {
	if m.watchdog.Stop() {
		m.logger.Debug("heartbeat polling stopped")
	}
	m.source.Close()
	m.logger.Info("monitor stopped")
}

// Click activates the next-step control. It navigates to and returns the armed
// destination, or returns nextstep.ErrNotArmed.
func (m *Monitor) Click(ctx context.Context) (string, error) {
	var (
		dest     string
		clickErr error
	)
	err := m.do(ctx, func() {
		_, span := m.tracer.Start(ctx, "monitor.click")
		defer span.End()
		dest, clickErr = m.next.Click()
		if clickErr != nil {
			span.SetStatus(codes.Error, clickErr.Error())
			return
		}
		span.SetAttributes(attribute.String("destination", dest))
		m.logger.Info("next step", zap.String("destination", dest))
		m.view.Navigate(dest)
	})
	if err != nil {
		return "", err
	}
	return dest, clickErr
}

// Snapshot returns the monitor's current status.
func (m *Monitor) Snapshot(ctx context.Context) (Status, error) {
	var st Status
	err := m.do(ctx, func() {
		_, armed := m.next.Armed()
		st = Status{
			ID:            m.id,
			Progress:      m.state.LastGood,
			BarEnabled:    m.state.BarEnabled,
			Alive:         m.watchdog.Alive(),
			Polling:       m.watchdog.Running(),
			LastBeat:      m.watchdog.LastBeat(),
			Loading:       m.loading,
			NextStepShown: m.next.Visible(),
			NextStepArmed: armed,
			LogEntries:    m.pane.Len(),
		}
	})
	return st, err
}

// do runs fn on the loop goroutine and waits for it to finish.
func (m *Monitor) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case m.actions <- wrapped:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("monitor action: %w", ctx.Err())
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor action: %w", ctx.Err())
	}
}

func (m *Monitor) handle(ctx context.Context, d eventsource.Delivery) {
	_, span := m.tracer.Start(ctx, "monitor.delivery", trace.WithAttributes(
		attribute.String("channel", string(d.Channel)),
		attribute.String("kind", d.Kind.String()),
	))
	defer span.End()
	if d.Err != nil {
		span.RecordError(d.Err)
		span.SetStatus(codes.Error, d.Kind.String())
	}

	switch d.Kind {
	case eventsource.KindError:
		m.streamError(d)
	case eventsource.KindMalformed:
		m.malformed(d.Channel, d.Err)
	case eventsource.KindMessage:
		m.metrics.ObserveMessage(string(d.Channel))
		switch d.Channel {
		case eventsource.Logs:
			m.appendLog(eventsource.Text(d.Payload))
		case eventsource.Progress:
			m.onProgress(d.Payload)
		case eventsource.Heartbeats:
			m.onHeartbeat()
		}
	}
}

func (m *Monitor) onProgress(payload json.RawMessage) {
	u, err := decodeProgress(payload)
	if err != nil {
		m.malformed(eventsource.Progress, err)
		return
	}

	eff := m.next.Observe(u)
	m.applyEffect(eff)

	var f progress.Frame
	m.state, f = progress.Reduce(m.state, u)
	m.apply(f)

	if u.Status == progress.StatusStartup {
		m.view.SetNextStepEnabled(false)
		m.pane.Clear()
		m.view.ClearLogs()
	}
}

// decodeProgress accepts the update as an object or as a JSON string holding
// the object.
func decodeProgress(payload json.RawMessage) (progress.Update, error) {
	raw := []byte(payload)
	if strings.HasPrefix(strings.TrimSpace(string(raw)), `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return progress.Update{}, fmt.Errorf("decode progress update: %w", err)
		}
		raw = []byte(inner)
	}
	return progress.Decode(raw)
}

func (m *Monitor) onHeartbeat() {
	m.watchdog.Beat()
	if m.state.LastGood.IsExecuted {
		if m.watchdog.Start() {
			m.logger.Debug("heartbeat polling started")
		}
		m.setLoading(true)
		return
	}
	if m.watchdog.Stop() {
		m.logger.Debug("heartbeat polling stopped")
		m.setLoading(false)
	}
}

func (m *Monitor) poll(ctx context.Context) {
	t := m.watchdog.Check()
	if t != watchdog.None {
		_, span := m.tracer.Start(ctx, "monitor.liveness", trace.WithAttributes(
			attribute.Bool("alive", t == watchdog.Recovered),
		))
		defer span.End()
	}
	switch t {
	case watchdog.Lost:
		m.metrics.ObserveLiveness(false)
		m.logger.Warn("heartbeat lost", zap.Time("last_beat", m.watchdog.LastBeat()))
		var f progress.Frame
		m.state, f = progress.Reduce(m.state, progress.NoHeartbeat())
		m.apply(f)
		m.setLoading(false)
	case watchdog.Recovered:
		m.metrics.ObserveLiveness(true)
		m.logger.Info("heartbeat recovered")
		var f progress.Frame
		m.state, f = progress.Restore(m.state)
		m.apply(f)
		m.setLoading(true)
	case watchdog.None:
	}
}

func (m *Monitor) streamError(d eventsource.Delivery) {
	m.metrics.ObserveStreamError(string(d.Channel), d.State.String())
	m.logger.Debug("event source error",
		zap.String("channel", string(d.Channel)),
		zap.Stringer("ready_state", d.State),
		zap.Error(d.Err),
	)
	m.appendLog(fmt.Sprintf("DEBUG: %s event: error", d.Channel))
	if d.State == eventsource.Connecting {
		m.appendLog(fmt.Sprintf("DEBUG: Reconnecting (readyState=%d)...", int(d.State)))
		return
	}
	m.appendLog("DEBUG: Error has occurred.")
}

func (m *Monitor) malformed(ch eventsource.Channel, err error) {
	m.metrics.ObserveMalformed(string(ch))
	m.logger.Warn("malformed message", zap.String("channel", string(ch)), zap.Error(err))
	m.appendLog(fmt.Sprintf("DEBUG: %s event: malformed message (%v)", ch, err))
}

func (m *Monitor) appendLog(text string) {
	e, ok := m.pane.Append(text)
	if !ok {
		return
	}
	m.metrics.ObserveLogEntry()
	m.view.AppendLog(e)
}

func (m *Monitor) setLoading(on bool) {
	m.loading = on
	m.view.SetLoading(on)
}

func (m *Monitor) apply(f progress.Frame) {
	if f.SetWidth {
		m.view.SetBarWidth(f.Width)
		m.metrics.SetProgress(f.Width)
	}
	if f.SetMessage {
		m.view.SetBarMessage(f.Message)
	}
	if f.SetColor {
		m.view.SetBarColor(f.Color)
	}
}

// applyEffect renders show, enable and reveal. Disabling happens after the
// bar update, alongside the log clear.
func (m *Monitor) applyEffect(eff nextstep.Effect) {
	if eff.Show {
		m.view.ShowNextStep()
	}
	if eff.Enable {
		m.view.SetNextStepEnabled(true)
	}
	if eff.Reveal {
		m.view.RevealNextStep()
	}
}

func (m *Monitor) flush() {
	if f, ok := m.view.(flusher); ok {
		f.Flush()
	}
}

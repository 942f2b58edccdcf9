// Package eventsource owns the three SSE subscriptions (logs, progress,
// heartbeats) and funnels everything they receive into a single ordered
// channel of Deliveries.
//
// Subscriptions reconnect until closed, whether the connection failed or the
// server ended the stream. Every reconnect is surfaced as an error Delivery in
// the CONNECTING state; a subscription that stops on a permanent error is
// surfaced as CLOSED. Malformed envelopes never stop a subscription.
package eventsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// Channel names one of the three subscriptions.
type Channel string

// Subscribed channels.
const (
	Logs       Channel = "logs"
	Progress   Channel = "progress"
	Heartbeats Channel = "heartbeats"
)

// ReadyState mirrors the EventSource ready states.
type ReadyState int

// EventSource ready states.
const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closed     ReadyState = 2
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// Kind tags a Delivery.
type Kind int

// Delivery kinds.
const (
	KindMessage Kind = iota
	KindMalformed
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindMalformed:
		return "malformed"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Delivery is one thing that happened on a subscription.
type Delivery struct {
	// Channel is the subscription the delivery came from.
	Channel Channel
	// Kind selects which of the remaining fields are meaningful.
	Kind Kind
	// Payload is the unwrapped envelope message for KindMessage.
	Payload json.RawMessage
	// State is the ready state after a KindError.
	State ReadyState
	// Err describes KindMalformed and KindError deliveries.
	Err error
}

// Endpoints are the subscription URLs supplied by the host.
type Endpoints struct {
	Logs       string
	Progress   string
	Heartbeats string
}

// Validate ensures every channel has a URL.
func (e Endpoints) Validate() error {
	for _, ep := range e.list() {
		if ep.url == "" {
			return fmt.Errorf("%s endpoint is required", ep.channel)
		}
	}
	return nil
}

type endpoint struct {
	channel Channel
	url     string
}

func (e Endpoints) list() []endpoint {
	return []endpoint{
		{channel: Logs, url: e.Logs},
		{channel: Progress, url: e.Progress},
		{channel: Heartbeats, url: e.Heartbeats},
	}
}

// Config controls the Manager.
//   - Endpoints: the three subscription URLs.
//   - Headers: extra request headers sent on every (re)connect.
//   - HTTPClient: optional client; it must not set a Timeout on streams.
//   - BufferSize: capacity of the delivery channel (default 256).
//   - RetryDelay: wait before reconnecting after the server ends a stream
//     (default 1s).
//   - Logger: optional structured logger.
type Config struct {
	Endpoints  Endpoints
	Headers    map[string]string
	HTTPClient *http.Client
	BufferSize int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

const (
	defaultBufferSize = 256
	defaultRetryDelay = time.Second
)

var errStreamEnded = errors.New("stream ended by server")

// Manager owns the subscriptions.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	out    chan Delivery

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager validates the config and returns an unopened Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Endpoints.Validate(); err != nil {
		return nil, fmt.Errorf("event source endpoints: %w", err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		out:    make(chan Delivery, cfg.BufferSize),
	}, nil
}

// Deliveries returns the channel every subscription forwards into.
func (m *Manager) Deliveries() <-chan Delivery {
	return m.out
}

// Open starts one subscription per channel. It fails if already opened.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("event sources already open")
	}
	m.started = true
	subCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, ep := range m.cfg.Endpoints.list() {
		m.wg.Add(1)
		go m.subscribe(subCtx, ep)
	}
	return nil
}

// Close tears down every subscription and returns once all of them have
// exited. It is safe to call multiple times and before Open.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) subscribe(ctx context.Context, ep endpoint) {
	defer m.wg.Done()
	logger := m.logger.With(zap.String("channel", string(ep.channel)), zap.String("url", ep.url))

	// Retry forever, but stop sleeping as soon as ctx is cancelled.
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	client := sse.NewClient(ep.url)
	client.ReconnectStrategy = backoff.WithContext(b, ctx)
	if m.cfg.HTTPClient != nil {
		client.Connection = m.cfg.HTTPClient
	}
	for k, v := range m.cfg.Headers {
		client.Headers[k] = v
	}
	client.OnConnect(func(*sse.Client) {
		logger.Debug("event source open")
	})
	client.ReconnectNotify = func(err error, next time.Duration) {
		if ctx.Err() != nil {
			return
		}
		logger.Debug("event source error; reconnecting", zap.Error(err), zap.Duration("retry_in", next))
		m.deliver(ctx, Delivery{Channel: ep.channel, Kind: KindError, State: Connecting, Err: err})
	}

	for {
		err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			m.deliver(ctx, decode(ep.channel, msg.Data))
		})
		if ctx.Err() != nil {
			logger.Debug("event source closed")
			return
		}
		if err != nil {
			logger.Warn("event source gave up", zap.Error(err))
			m.deliver(ctx, Delivery{Channel: ep.channel, Kind: KindError, State: Closed, Err: err})
			return
		}

		// A clean end of stream is retried like a dropped connection.
		logger.Debug("event source ended; reconnecting", zap.Duration("retry_in", m.cfg.RetryDelay))
		m.deliver(ctx, Delivery{Channel: ep.channel, Kind: KindError, State: Connecting, Err: errStreamEnded})
		timer := time.NewTimer(m.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("event source closed")
			return
		case <-timer.C:
		}
	}
}

func decode(ch Channel, data []byte) Delivery {
	payload, err := DecodeEnvelope(data)
	if err != nil {
		return Delivery{Channel: ch, Kind: KindMalformed, Err: err}
	}
	return Delivery{Channel: ch, Kind: KindMessage, Payload: payload}
}

func (m *Manager) deliver(ctx context.Context, d Delivery) {
	select {
	case m.out <- d:
	case <-ctx.Done():
	}
}

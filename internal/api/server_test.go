package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/eventsource"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/monitor"
	"github.com/JakeFAU/runwatch/internal/nextstep"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/view"
)

func serve(t *testing.T, s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestHealthz always answers ok.
func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeMonitor{}, view.NewPage(0)), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// TestReadyzFollowsMonitor reports unavailable once the loop has stopped.
func TestReadyzFollowsMonitor(t *testing.T) {
	t.Parallel()

	mon := &fakeMonitor{}
	s := NewServer(mon, view.NewPage(0))
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/readyz", nil).Code)

	mon.snapErr = monitor.ErrStopped
	rec := serve(t, s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), monitor.ErrStopped.Error())
}

// TestStateCombinesMonitorAndPage returns the status next to the rendered page.
func TestStateCombinesMonitorAndPage(t *testing.T) {
	t.Parallel()

	page := view.NewPage(0)
	page.SetBarWidth(40)
	page.SetBarMessage("(2/4)  testing")
	mon := &fakeMonitor{status: monitor.Status{
		ID:       "m-1",
		Progress: progress.Update{Status: progress.StatusRunning, CurrentStep: 2, TotalSteps: 4},
		Alive:    true,
	}}

	rec := serve(t, NewServer(mon, page), http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "m-1", body.Monitor.ID)
	require.Equal(t, progress.StatusRunning, body.Monitor.Progress.Status)
	require.True(t, body.Monitor.Alive)
	require.Equal(t, "(2/4)  testing", body.Page.Bar.Message)
	require.InDelta(t, 40.0, body.Page.Bar.Width, 1e-9)
}

// TestNextStepStatuses maps click outcomes to HTTP responses.
func TestNextStepStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dest     string
		err      error
		code     int
		location string
	}{
		{name: "armed", dest: "/tools?toolName=a&imageURL=b", code: http.StatusSeeOther, location: "/tools?toolName=a&imageURL=b"},
		{name: "not armed", err: nextstep.ErrNotArmed, code: http.StatusConflict},
		{name: "stopped", err: monitor.ErrStopped, code: http.StatusServiceUnavailable},
		{name: "timeout", err: fmt.Errorf("monitor action: %w", context.DeadlineExceeded), code: http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewServer(&fakeMonitor{dest: tt.dest, clickErr: tt.err}, view.NewPage(0))
			rec := serve(t, s, http.MethodPost, "/v1/next-step", nil)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

// TestAPIKeyGuardsV1 protects /v1 routes and leaves probes open.
func TestAPIKeyGuardsV1(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeMonitor{}, view.NewPage(0), WithAPIKey("secret"))
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusForbidden, serve(t, s, http.MethodGet, "/v1/state", nil).Code)
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/v1/state", http.Header{"X-Api-Key": {"secret"}}).Code)
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/v1/state?api_key=secret", nil).Code)
}

// TestRequestIDMiddlewareSetsHeader assigns an ID unless the caller sent one.
func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeMonitor{}, view.NewPage(0))
	require.NotEmpty(t, serve(t, s, http.MethodGet, "/healthz", nil).Header().Get("X-Request-ID"))
	rec := serve(t, s, http.MethodGet, "/healthz", http.Header{"X-Request-Id": {"abc"}})
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

// TestMetricsAndTracing serves the gatherer and records a span per request.
func TestMetricsAndTracing(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	col, err := metrics.New(reg)
	require.NoError(t, err)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := NewServer(&fakeMonitor{}, view.NewPage(0),
		WithLogger(zap.NewNop()),
		WithMetrics(col, reg),
		WithTracer(tp.Tracer("test")),
	)
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/v1/state", nil).Code)

	rec := serve(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `runwatch_http_requests_total{code="200",method="GET"} 1`)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "http GET /v1/state", spans[0].Name())
}

// TestRecoverMiddleware turns handler panics into 500s.
func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeMonitor{panics: true}, view.NewPage(0))
	rec := serve(t, s, http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

// TestServerOverRunningMonitor drives a real monitor loop through the API.
func TestServerOverRunningMonitor(t *testing.T) {
	t.Parallel()

	src := &chanSource{ch: make(chan eventsource.Delivery)}
	page := view.NewPage(0)
	mon, err := monitor.New(monitor.Config{
		Action:  "/run/add_detector_tool/image",
		Initial: progress.Update{Status: progress.StatusRunning, Type: progress.TypeImageBuild},
	}, page, monitor.WithSource(src))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	s := NewServer(mon, page)
	require.Equal(t, http.StatusConflict, serve(t, s, http.MethodPost, "/v1/next-step", nil).Code)

	src.ch <- eventsource.Delivery{
		Channel: eventsource.Progress,
		Kind:    eventsource.KindMessage,
		Payload: json.RawMessage(`{"status":"success","type":"imageBuild","toolName":"det","imageURL":"reg/det:1"}`),
	}
	rec := serve(t, s, http.MethodPost, "/v1/next-step", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/run/add_detector_tool/image?toolName=det"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, http.MethodGet, "/readyz", nil).Code)
}

// TestResponseWriterHijackBehavior passes hijacking through when supported.
func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeMonitor struct {
	status   monitor.Status
	snapErr  error
	dest     string
	clickErr error
	panics   bool
}

func (f *fakeMonitor) Snapshot(context.Context) (monitor.Status, error) {
	if f.panics {
		panic("boom")
	}
	return f.status, f.snapErr
}

func (f *fakeMonitor) Click(context.Context) (string, error) {
	return f.dest, f.clickErr
}

type chanSource struct {
	ch chan eventsource.Delivery
}

func (s *chanSource) Open(context.Context) error              { return nil }
func (s *chanSource) Deliveries() <-chan eventsource.Delivery { return s.ch }
func (s *chanSource) Close()                                  {}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

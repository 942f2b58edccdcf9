package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JakeFAU/runwatch/internal/eventsource"
	"github.com/JakeFAU/runwatch/internal/nextstep"
)

func spanAttr(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.Emit()
		}
	}
	return ""
}

// TestTracerRecordsDeliveriesAndClicks emits one span per delivery and click.
func TestTracerRecordsDeliveriesAndClicks(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, Config{}, WithTracer(tp.Tracer("test")))
	h.start()
	h.log("hello")
	h.send(eventsource.Delivery{Channel: eventsource.Heartbeats, Kind: eventsource.KindError, State: eventsource.Connecting, Err: errors.New("eof")})
	_, err := h.mon.Click(context.Background())
	require.ErrorIs(t, err, nextstep.ErrNotArmed)
	_ = h.status()

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	require.Equal(t, "monitor.delivery", spans[0].Name())
	require.Equal(t, "logs", spanAttr(spans[0], "channel"))
	require.Equal(t, "message", spanAttr(spans[0], "kind"))
	require.Equal(t, codes.Unset, spans[0].Status().Code)

	require.Equal(t, "heartbeats", spanAttr(spans[1], "channel"))
	require.Equal(t, "error", spanAttr(spans[1], "kind"))
	require.Equal(t, codes.Error, spans[1].Status().Code)

	require.Equal(t, "monitor.click", spans[2].Name())
	require.Equal(t, codes.Error, spans[2].Status().Code)
}

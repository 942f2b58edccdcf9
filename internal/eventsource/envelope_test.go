package eventsource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecodeEnvelope covers the shapes each channel sends plus malformed input.
func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	payload, err := DecodeEnvelope([]byte(`{"message":"run | INFO | started"}`))
	require.NoError(t, err)
	require.Equal(t, "run | INFO | started", Text(payload))

	payload, err = DecodeEnvelope([]byte(`{"message":{"status":"running","currentStep":1}}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"running","currentStep":1}`, string(payload))

	payload, err = DecodeEnvelope([]byte(`{"message": 1700000000.5}`))
	require.NoError(t, err)
	require.Equal(t, "1700000000.5", Text(payload))

	_, err = DecodeEnvelope([]byte(`{"msg":"x"}`))
	require.ErrorIs(t, err, ErrMissingMessage)

	_, err = DecodeEnvelope([]byte(`not json`))
	require.Error(t, err)
}

// TestEndpointsValidate requires all three URLs.
func TestEndpointsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Endpoints{Logs: "a", Progress: "b", Heartbeats: "c"}.Validate())
	err := Endpoints{Logs: "a", Progress: "b"}.Validate()
	require.ErrorContains(t, err, "heartbeats")

	_, err = NewManager(Config{})
	require.Error(t, err)
}

package eventsource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingMessage signals an envelope without a "message" field.
var ErrMissingMessage = errors.New("envelope has no message field")

type envelope struct {
	Message json.RawMessage `json:"message"`
}

// DecodeEnvelope unwraps {"message": ...} and returns the inner payload.
func DecodeEnvelope(data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Message) == 0 {
		return nil, ErrMissingMessage
	}
	return env.Message, nil
}

// Text returns the payload as a string. JSON strings are unquoted; any other
// JSON value is returned in its compact encoded form.
func Text(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload)
	}
	return buf.String()
}

package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle tag carried by every Update.
type Status string

// Statuses emitted by the backend plus the synthetic watchdog status.
const (
	StatusStartup     Status = "startup"
	StatusRunning     Status = "running"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
	StatusFailure     Status = "failure"
	StatusAborted     Status = "aborted"
	StatusSuccess     Status = "success"
	StatusNoRun       Status = "no run"
	StatusNoHeartbeat Status = "no heartbeat"
)

// TypeImageBuild tags updates produced by the image build workflow.
const TypeImageBuild = "imageBuild"

// BarDisabled is the progressBar value that hides the bar for the monitor lifetime.
const BarDisabled = "disabled"

const noHeartbeatMessage = "No run seems to be executed at the moment"

// Stepped reports whether the status renders as a step fraction.
func (s Status) Stepped() bool {
	switch s {
	case StatusStartup, StatusRunning, StatusFinished:
		return true
	default:
		return false
	}
}

// Failed reports whether the status is a backend-reported failure.
func (s Status) Failed() bool {
	switch s {
	case StatusError, StatusFailure, StatusAborted:
		return true
	default:
		return false
	}
}

// Update is one message from the progress channel.
type Update struct {
	// Status drives the reconciler branch.
	Status Status `json:"status"`
	// CurrentStep is the number of completed steps.
	CurrentStep Step `json:"currentStep"`
	// TotalSteps is the number of planned steps.
	TotalSteps Step `json:"totalSteps"`
	// CurrentMessage is the human readable step description.
	CurrentMessage string `json:"currentMessage"`
	// Color optionally overrides the bar color for this update.
	Color string `json:"color,omitempty"`
	// Type identifies the workflow, e.g. imageBuild.
	Type string `json:"type,omitempty"`
	// ToolName is set on image build completion.
	ToolName string `json:"toolName,omitempty"`
	// ImageURL is set on image build completion.
	ImageURL string `json:"imageURL,omitempty"`
	// IsExecuted reports whether a backend process is currently running.
	IsExecuted Flag `json:"isExecuted"`
	// ProgressBar set to "disabled" hides the bar for the monitor lifetime.
	ProgressBar string `json:"progressBar,omitempty"`
}

// NoHeartbeat builds the synthetic update rendered when liveness is lost.
func NoHeartbeat() Update {
	return Update{
		Status:         StatusNoHeartbeat,
		CurrentMessage: noHeartbeatMessage,
	}
}

// Decode parses a progress payload and validates it.
func Decode(data []byte) (Update, error) {
	var u Update
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&u); err != nil {
		return Update{}, fmt.Errorf("decode progress update: %w", err)
	}
	if err := u.Validate(); err != nil {
		return Update{}, err
	}
	return u, nil
}

// Validate performs coarse validation on decoded updates.
func (u Update) Validate() error {
	if strings.TrimSpace(string(u.Status)) == "" {
		return errors.New("status is required")
	}
	if u.CurrentStep < 0 {
		return errors.New("currentStep must be >= 0")
	}
	if u.TotalSteps < 0 {
		return errors.New("totalSteps must be >= 0")
	}
	return nil
}

// Step is a non-negative step counter that accepts JSON numbers and numeric
// strings. Empty strings and null decode to zero.
type Step int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Step) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("step: %w", err)
		}
		raw = strings.TrimSpace(str)
		if raw == "" {
			*s = 0
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("step %q is not an integer", raw)
	}
	if n < 0 {
		return fmt.Errorf("step %d must be >= 0", n)
	}
	*s = Step(n)
	return nil
}

// Flag is a boolean that accepts JSON booleans and the strings "True"/"False".
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "true":
		*f = true
	case strings.HasPrefix(raw, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("flag: %w", err)
		}
		*f = Flag(strings.EqualFold(strings.TrimSpace(str), "true"))
	default:
		*f = false
	}
	return nil
}

// MarshalJSON keeps the string form the backend emits.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"True"`), nil
	}
	return []byte(`"False"`), nil
}

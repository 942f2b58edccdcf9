package progress

import "fmt"

// AlertColor is the bar color used for failures and liveness loss.
const AlertColor = "red"

// State is the reconciler's memory between updates.
type State struct {
	// LastGood is the most recent update that was not a no-heartbeat advisory.
	LastGood Update
	// BarEnabled is fixed at construction from the initial snapshot.
	BarEnabled bool
}

// NewState seeds the reconciler from the initial snapshot. The progressBar
// field is only honored here; later updates cannot re-enable or disable the bar.
func NewState(initial Update) State {
	return State{
		LastGood:   initial,
		BarEnabled: initial.ProgressBar != BarDisabled,
	}
}

// Frame lists the bar changes produced by one update. Fields whose Set flag
// is false must be left untouched by the renderer. An empty Color with
// SetColor resets the bar to its default color.
type Frame struct {
	SetWidth   bool
	Width      float64
	SetMessage bool
	Message    string
	SetColor   bool
	Color      string
}

// Empty reports whether the frame carries no changes.
func (f Frame) Empty() bool {
	return !f.SetWidth && !f.SetMessage && !f.SetColor
}

// Reduce folds an update into the state and returns the bar changes to render.
// It is pure: the same inputs always produce the same outputs.
func Reduce(s State, u Update) (State, Frame) {
	previous := s.LastGood
	if u.Status != StatusNoHeartbeat {
		s.LastGood = u
	}
	if !s.BarEnabled {
		return s, Frame{}
	}

	var f Frame
	switch {
	case u.Status.Stepped():
		f.SetWidth = true
		f.Width = Percent(u)
		f.SetMessage = true
		f.Message = StepMessage(u)
		f.SetColor = true
		f.Color = ""
	case u.Status.Failed():
		f.SetMessage = true
		f.Message = u.CurrentMessage
		f.SetColor = true
		f.Color = AlertColor
	case u.Status == StatusNoHeartbeat:
		if !previous.Status.Failed() {
			f.SetMessage = true
			f.Message = u.CurrentMessage
			f.SetColor = true
			f.Color = AlertColor
		}
	}

	if u.Color != "" {
		f.SetColor = true
		f.Color = u.Color
	}
	return s, f
}

// Restore re-renders the last known good snapshot, e.g. after liveness recovers.
func Restore(s State) (State, Frame) {
	return Reduce(s, s.LastGood)
}

// Percent returns the bar fill for an update. One imaginary extra step is
// added until the run is finished so the bar never shows 100% early.
func Percent(u Update) float64 {
	extra := 1
	if u.Status == StatusFinished {
		extra = 0
	}
	denominator := int(u.TotalSteps) + extra
	if denominator <= 0 {
		return 0
	}
	pct := 100 * float64(u.CurrentStep) / float64(denominator)
	if pct > 100 {
		return 100
	}
	return pct
}

// StepMessage renders "(current/total)  message".
func StepMessage(u Update) string {
	return fmt.Sprintf("(%d/%d)  %s", u.CurrentStep, u.TotalSteps, u.CurrentMessage)
}

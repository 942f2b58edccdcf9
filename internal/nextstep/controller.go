// Package nextstep derives the follow-up navigation control from progress
// updates and builds its destination.
package nextstep

import (
	"errors"
	"net/url"
	"strings"

	"github.com/JakeFAU/runwatch/internal/progress"
)

// ErrNotArmed is returned by Click when no enabling event is pending.
var ErrNotArmed = errors.New("next step is not available")

// Effect lists the view changes caused by one observed update.
type Effect struct {
	Show    bool
	Enable  bool
	Disable bool
	Reveal  bool
}

// Controller tracks visibility, enablement and the single armed destination.
// It is not safe for concurrent use.
type Controller struct {
	action  string
	visible bool
	enabled bool
	armed   string
}

// New creates a hidden, disabled controller navigating to action.
func New(action string) *Controller {
	return &Controller{action: action}
}

// Observe applies an update. It runs for the initial snapshot and for every
// streamed update.
func (c *Controller) Observe(u progress.Update) Effect {
	var eff Effect
	if u.Type == progress.TypeImageBuild && !c.visible {
		c.visible = true
		eff.Show = true
	}
	switch u.Status {
	case progress.StatusSuccess:
		if !c.visible {
			return eff
		}
		c.enabled = true
		// Each enabling event replaces the pending navigation; handlers never stack.
		c.armed = Destination(c.action, u.ToolName, u.ImageURL)
		eff.Enable = true
		eff.Reveal = true
	case progress.StatusStartup:
		c.enabled = false
		c.armed = ""
		eff.Disable = true
	}
	return eff
}

// Visible reports whether the control is shown.
func (c *Controller) Visible() bool {
	return c.visible
}

// Enabled reports whether the control accepts clicks.
func (c *Controller) Enabled() bool {
	return c.enabled
}

// Armed returns the pending destination, if any.
func (c *Controller) Armed() (string, bool) {
	return c.armed, c.armed != ""
}

// Click consumes the pending navigation. A second click without a new
// enabling event returns ErrNotArmed.
func (c *Controller) Click() (string, error) {
	if !c.visible || !c.enabled || c.armed == "" {
		return "", ErrNotArmed
	}
	dest := c.armed
	c.armed = ""
	return dest, nil
}

// Destination returns action?toolName=..&imageURL=.. with both values
// percent-encoded the way encodeURIComponent does.
func Destination(action, toolName, imageURL string) string {
	return action + "?toolName=" + encodeComponent(toolName) + "&imageURL=" + encodeComponent(imageURL)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeComponent(s string) string {
	return componentReplacer.Replace(url.QueryEscape(s))
}

package view

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ConfigureColor picks the lipgloss color profile. Color is used only when
// enabled, stdout is a terminal and neither NO_COLOR nor TERM=dumb says
// otherwise.
func ConfigureColor(enabled bool) {
	if enabled && colorAllowed() {
		lipgloss.SetColorProfile(termenv.ColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

func colorAllowed() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// BarColor resolves a progress color name from the backend into a terminal
// color. Unknown names pass through so hex values keep working; "" yields
// the accent color.
func BarColor(name string) lipgloss.Color {
	if name == "" {
		return purple
	}
	if c, ok := namedColors[strings.ToLower(name)]; ok {
		return c
	}
	return lipgloss.Color(name)
}

package ui

import (
	"fmt"

	"github.com/groblegark/pixelrelay/internal/diaglog"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 71  // green
	colorErr    = 167 // red
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorCmd, s)
}

// RenderStatus colors a diagnostic log status: responses green, errors red,
// requests muted.
func RenderStatus(status string) string {
	if noColor {
		return status
	}
	switch status {
	case diaglog.StatusResponse:
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorOK, status)
	case diaglog.StatusError:
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorErr, status)
	default:
		return RenderMuted(status)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

package ui

import "sync/atomic"

// Basic ANSI color codes (legacy - used by logging package).
// New code should use lipgloss styles from styles.go instead.
const (
	Reset = "\033[0m"
	// LegacyBold is the raw ANSI code for bold text
	LegacyBold = "\033[1m"
	FgCyan     = "\033[36m"
	FgGreen    = "\033[32m"
	FgMagenta  = "\033[35m"
	FgYellow   = "\033[33m"
	FgRed      = "\033[31m"
)

var noColor atomic.Bool

// Init configures whether legacy ANSI coloring is applied.
func Init(disableColor bool) { noColor.Store(disableColor) }

// ColorEnabled reports whether legacy ANSI coloring is active.
func ColorEnabled() bool { return !noColor.Load() }

// Color wraps a string with the given ANSI code.
// When coloring is disabled via Init, s is returned unchanged.
func Color(s string, code string) string {
	if noColor.Load() || code == "" {
		return s
	}
	return code + s + Reset
}

package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	ApplyColorProfile()
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor decides whether output is colored.
// NO_COLOR always wins, then CLICOLOR_FORCE, then CLICOLOR=0, then TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons may use non-ASCII symbols.
func ShouldUseEmoji() bool {
	if os.Getenv("IRS_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// ColorProfile returns the color profile output is rendered with.
func ColorProfile() termenv.Profile {
	if !ShouldUseColor() {
		return termenv.Ascii
	}
	if p := termenv.EnvColorProfile(); p != termenv.Ascii {
		return p
	}
	// Forced color on a non-TTY: ANSI is the safe choice.
	return termenv.ANSI
}

// ApplyColorProfile makes lipgloss styles follow ColorProfile. It is run
// at startup and again after flags change the environment.
func ApplyColorProfile() {
	lipgloss.SetColorProfile(ColorProfile())
}

// HasDarkBackground reports whether the terminal background is dark.
// Without a terminal it assumes dark.
func HasDarkBackground() bool {
	if !IsTerminal() {
		return true
	}
	return termenv.HasDarkBackground()
}

// TerminalWidth returns the width of stdout, or def when it is unknown.
func TerminalWidth(def int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return def
}

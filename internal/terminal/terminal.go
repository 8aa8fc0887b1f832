// Package terminal detects colour support and terminal size.
package terminal

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

// ColorDisabled returns true when ANSI colors should be disabled.
// - MAGPIES_NO_COLOR or NO_COLOR env set (any value)
// - Windows without Windows Terminal (cmd.exe, older PowerShell)
func ColorDisabled() bool {
	if strings.TrimSpace(os.Getenv("MAGPIES_NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return true
	}
	if runtime.GOOS != "windows" {
		return false
	}
	wtSession := strings.TrimSpace(os.Getenv("WT_SESSION"))
	termProgram := strings.TrimSpace(os.Getenv("TERM_PROGRAM"))
	return wtSession == "" && termProgram != "WindowsTerminal"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Size returns the terminal width and height of f, or the fallback values
// when f is not a terminal.
func Size(f *os.File, fallbackWidth, fallbackHeight int) (int, int) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return fallbackWidth, fallbackHeight
	}
	return w, h
}

// VisibleIntervals derives how many intervals fit in width columns, given
// the columns each interval uses and the columns reserved for labels.
func VisibleIntervals(width, perInterval, reserved int) int {
	if perInterval <= 0 {
		perInterval = 1
	}
	n := (width - reserved) / perInterval
	return max(n, 1)
}

// Package tui renders bulkops output for terminals: the summary box of a run,
// its progress bar and tables of persisted runs.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/rshade/bulkops/internal/store"
)

// Color palette.
const (
	ColorHeader  = lipgloss.Color("33")
	ColorLabel   = lipgloss.Color("246")
	ColorValue   = lipgloss.Color("252")
	ColorOK      = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("208")
	ColorError   = lipgloss.Color("196")
	ColorSubtle  = lipgloss.Color("240")
)

// Shared styles.
//
//nolint:gochecknoglobals // Styles are immutable values shared by all renderers.
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorHeader)
	LabelStyle  = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorValue)
	SubtleStyle = lipgloss.NewStyle().Foreground(ColorSubtle)
	ErrorStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	BoxStyle    = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(ColorSubtle)
)

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of stdout, or fallback when unknown.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// StatusStyle colors a run status.
func StatusStyle(s store.Status) lipgloss.Style {
	switch s {
	case store.StatusFinished:
		return lipgloss.NewStyle().Foreground(ColorOK)
	case store.StatusFailed:
		return lipgloss.NewStyle().Foreground(ColorError)
	case store.StatusAbandoned:
		return lipgloss.NewStyle().Foreground(ColorSubtle)
	default:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	}
}

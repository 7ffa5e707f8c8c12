package tui

import (
	"github.com/charmbracelet/bubbles/progress"

	"github.com/rshade/bulkops/internal/engine/batch"
)

const defaultBarWidth = 40

// ProgressBar renders step reports as a static bar for inline terminal output.
type ProgressBar struct {
	bar progress.Model
}

// NewProgressBar builds a bar of the given width; 0 picks a default.
func NewProgressBar(width int) *ProgressBar {
	if width <= 0 {
		width = defaultBarWidth
	}
	return &ProgressBar{bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width))}
}

// Render draws r. Indeterminate reports show only their message.
func (p *ProgressBar) Render(r batch.Report) string {
	if !r.Determinate {
		return SubtleStyle.Render(r.Message)
	}
	return p.bar.ViewAs(r.Fraction) + " " + r.Message
}

package tui

import (
	"strconv"
	"strings"

	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/store"
)

const borderPadding = 2

// RenderSummary renders the boxed result of a run: its status, the summary
// sentence and one line per label.
func RenderSummary(rec *store.Record, width int) string {
	summary := tally.Summarize(rec.State.Tally)

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("BATCH " + rec.ID))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Action:  "))
	b.WriteString(ValueStyle.Render(rec.Request.ActionID))
	b.WriteString(LabelStyle.Render("    Status: "))
	b.WriteString(StatusStyle(rec.Status).Render(string(rec.Status)))
	b.WriteString(LabelStyle.Render("    Steps: "))
	b.WriteString(ValueStyle.Render(strconv.Itoa(rec.Steps)))
	b.WriteString("\n")
	b.WriteString(summary.Text)
	for _, lc := range summary.Counts {
		b.WriteString("\n  ")
		b.WriteString(LabelStyle.Render(lc.Label + ": "))
		b.WriteString(ValueStyle.Render(strconv.Itoa(lc.Count)))
	}
	if rec.LastError != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Last error: " + rec.LastError))
	}

	style := BoxStyle
	if width > borderPadding {
		style = style.Width(width - borderPadding)
	}
	return style.Render(b.String())
}

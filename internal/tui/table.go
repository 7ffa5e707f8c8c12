package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rshade/bulkops/internal/store"
)

const headerLines = 2

// BatchColumns are the columns of the persisted run table.
//
//nolint:gochecknoglobals,mnd // Column widths.
var BatchColumns = []table.Column{
	{Title: "ID", Width: 26},
	{Title: "Action", Width: 16},
	{Title: "Status", Width: 10},
	{Title: "Progress", Width: 14},
	{Title: "Steps", Width: 6},
	{Title: "Updated", Width: 20},
}

// BatchRow flattens a persisted run into table cells.
func BatchRow(rec *store.Record) table.Row {
	return table.Row{
		rec.ID,
		rec.Request.ActionID,
		string(rec.Status),
		progressCell(rec),
		strconv.Itoa(rec.Steps),
		rec.UpdatedAt.Local().Format(time.DateTime),
	}
}

func progressCell(rec *store.Record) string {
	c := rec.State.Processing
	if c.Total == nil {
		return strconv.Itoa(c.Processed)
	}
	return fmt.Sprintf("%d/%d", c.Processed, *c.Total)
}

// RenderBatchTable renders records as a non-interactive table.
func RenderBatchTable(records []*store.Record) string {
	rows := make([]table.Row, len(records))
	for i, rec := range records {
		rows[i] = BatchRow(rec)
	}
	t := table.New(
		table.WithColumns(BatchColumns),
		table.WithRows(rows),
		// Height includes the two header lines.
		table.WithHeight(len(rows)+headerLines+1),
	)
	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = s.Cell
	t.SetStyles(s)
	return t.View()
}

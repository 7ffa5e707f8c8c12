package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/store"
	"github.com/rshade/bulkops/internal/tui"
)

// statusView is the JSON form of "bulkops status".
type statusView struct {
	*store.Record

	Summary tally.Summary `json:"summary"`
	Message string        `json:"message"`
}

func newStatusCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status BATCH_ID",
		Short: "Show progress and results of a batch",
		Example: `  bulkops status 01J9Z3V3K2M0000000000000AB
  bulkops status 01J9Z3V3K2M0000000000000AB --output json`,
		Args: batchIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.openScheduler(ctx); err != nil {
				return err
			}
			rec, err := a.sched.Status(ctx, args[0])
			if err != nil {
				return err
			}
			report := rec.State.Report()
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), statusView{
					Record:  rec,
					Summary: tally.Summarize(rec.State.Tally),
					Message: report.Message,
				})
			}
			cmd.Println(tui.RenderSummary(rec, tui.TerminalWidth(defaultWidth)))
			if !rec.State.Done() {
				cmd.Println(report.Message)
				if line := chunkLine(rec); line != "" && rec.Status != store.StatusAbandoned {
					cmd.Println(line)
				}
			}
			cmd.Println(tui.SubtleStyle.Render(expiryLine(rec)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func expiryLine(rec *store.Record) string {
	line := "Submitted " + store.FormatDuration(rec.Age()) + " ago"
	if rec.ExpiresAt.IsZero() {
		return line + ", never expires"
	}
	return line + ", expires in " + store.FormatDuration(rec.TimeUntilExpiration())
}

// chunkLine locates the next chunk of an unfinished run whose selection size
// is known; it is empty otherwise.
func chunkLine(rec *store.Record) string {
	st := rec.State
	var (
		cursor batch.Cursor
		phase  string
	)
	switch st.Phase {
	case engine.PhaseListing:
		cursor, phase = st.Listing, "Next listing chunk"
	case engine.PhaseProcessing:
		cursor, phase = st.Processing, "Next chunk"
	default:
		return ""
	}
	if cursor.Total == nil {
		return ""
	}
	total := *cursor.Total
	if st.Phase == engine.PhaseProcessing {
		// Undecodable keys are counted as processed up front.
		total -= st.Invalid
	}
	windows := batch.Windows(total, rec.Request.ChunkSize)
	if cursor.ChunkIndex >= len(windows) {
		return ""
	}
	w := windows[cursor.ChunkIndex]
	return fmt.Sprintf("%s: %d of %d (items %d-%d)", phase, cursor.ChunkIndex+1, len(windows), w[0]+1, w[1])
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/store"
	"github.com/rshade/bulkops/internal/tui"
)

const defaultWidth = 80

func stdoutIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && tui.IsTerminal(f)
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && tui.IsTerminal(f)
}

// batchIDArg accepts exactly one well-formed batch id.
func batchIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !logging.ValidID(args[0]) {
		return fmt.Errorf("invalid batch id %q", args[0])
	}
	return nil
}

func newStepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "step BATCH_ID",
		Short: "Run the next step of a batch",
		Long: `Runs exactly one step of a persisted batch: one listing window while the item
list is captured, or one chunk of the action afterwards. A failed step leaves
the batch at its last good state so it can be retried.`,
		Args: batchIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.openScheduler(ctx); err != nil {
				return err
			}
			rec, res, err := a.sched.Step(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(res.Message)
			if res.Done {
				cmd.Println(tui.RenderSummary(rec, tui.TerminalWidth(defaultWidth)))
			}
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run BATCH_ID",
		Short: "Run a batch to completion",
		Long: `Steps a persisted batch until it finishes, retrying failed steps as configured
under batch.max_retries. Interrupting the command leaves the batch resumable.`,
		Args: batchIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.openScheduler(cmd.Context()); err != nil {
				return err
			}
			return runToCompletion(cmd, a, args[0])
		},
	}
}

// runToCompletion drives id, drawing a progress bar on terminals and one line
// per step otherwise, and prints the summary once the run stops.
func runToCompletion(cmd *cobra.Command, a *app, id string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	interactive := stdoutIsTerminal(cmd)

	if rec, err := a.sched.Status(ctx, id); err == nil {
		if def, defErr := a.registry.Get(rec.Request.ActionID); defErr == nil {
			fmt.Fprintln(out, engine.Title(def))
		}
	}

	var (
		bar      *tui.ProgressBar
		progress *batch.Progress
	)
	if interactive {
		bar = tui.NewProgressBar(0)
	}
	observe := func(rec *store.Record, res engine.StepResult) {
		if progress == nil {
			progress = batch.NewProgress(res.Report)
		} else {
			progress.Observe(res.Report)
		}
		if interactive {
			line := bar.Render(res.Report)
			if eta := progress.EstimatedTimeRemaining(); eta > 0 && !res.Done {
				line += tui.SubtleStyle.Render("  ETA " + store.FormatDuration(eta))
			}
			fmt.Fprintf(out, "\r\033[K%s", line)
			return
		}
		fmt.Fprintf(out, "[step %d] %s\n", rec.Steps, res.Report.Message)
	}

	rec, err := a.sched.Run(ctx, id, observe)
	if interactive && progress != nil {
		fmt.Fprintln(out)
	}
	if progress != nil {
		logger.Debug().
			Ctx(ctx).
			Str("batch_id", id).
			Int("steps", progress.Steps()).
			Dur("elapsed", progress.ElapsedTime()).
			Float64("items_per_second", progress.ItemsPerSecond()).
			Msg("run stopped")
	}
	if rec != nil {
		fmt.Fprintln(out, tui.RenderSummary(rec, tui.TerminalWidth(defaultWidth)))
	}
	return err
}

package cli

import (
	"github.com/spf13/cobra"
)

func newAbandonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon BATCH_ID",
		Short: "Stop a batch without undoing processed items",
		Args:  batchIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.openScheduler(ctx); err != nil {
				return err
			}
			rec, err := a.sched.Abandon(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Batch %s is %s after %d processed items\n",
				rec.ID, rec.Status, rec.State.Processing.Processed)
			return nil
		},
	}
}

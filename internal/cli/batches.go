package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/cli/pagination"
	"github.com/rshade/bulkops/internal/store"
	"github.com/rshade/bulkops/internal/tui"
)

func newBatchesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "batches", Short: "Manage persisted batches"}
	cmd.AddCommand(newBatchesListCmd(a), newBatchesCleanupCmd(a))
	return cmd
}

// batchPage is the JSON form of "bulkops batches list".
type batchPage struct {
	Batches []*store.Record `json:"batches"`
	Meta    pagination.Meta `json:"meta"`
}

func newBatchesListCmd(a *app) *cobra.Command {
	var (
		params pagination.Params
		status string
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted batches",
		Example: `  # Newest first
  bulkops batches list

  # Failed batches, oldest first
  bulkops batches list --status failed --sort created:asc

  # Second page of ten
  bulkops batches list --page 2 --page-size 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if err := params.Validate(); err != nil {
				return err
			}
			field, order, err := pagination.ParseSort(params.Sort)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.openScheduler(ctx); err != nil {
				return err
			}
			records, err := a.sched.List(ctx)
			if err != nil {
				return err
			}
			if status != "" {
				records = filterStatus(records, store.Status(status))
			}
			records, err = pagination.SortRecords(records, field, order)
			if err != nil {
				return err
			}
			meta := pagination.NewMeta(params, len(records))
			page := pagination.Apply(params, records)

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), batchPage{Batches: page, Meta: meta})
			}
			if len(page) == 0 {
				cmd.Println("No batches found.")
				return nil
			}
			cmd.Println(tui.RenderBatchTable(page))
			cmd.Println(tui.SubtleStyle.Render(fmt.Sprintf("Page %d of %d (%d batches)",
				meta.CurrentPage, meta.TotalPages, meta.TotalItems)))
			return nil
		},
	}
	params.AddFlags(cmd)
	cmd.Flags().StringVar(&status, "status", "", "only batches in this status (pending, running, finished, failed, abandoned)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func filterStatus(records []*store.Record, status store.Status) []*store.Record {
	out := make([]*store.Record, 0, len(records))
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func newBatchesCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete batches whose TTL has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.openScheduler(ctx); err != nil {
				return err
			}
			n, err := a.sched.Cleanup(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d expired batches\n", n)
			return nil
		},
	}
}

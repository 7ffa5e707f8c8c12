package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/action"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutput(format string) error {
	if format != outputTable && format != outputJSON {
		return fmt.Errorf("unsupported output format %q (use %s or %s)", format, outputTable, outputJSON)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newActionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "actions", Short: "Inspect the registered actions"}
	cmd.AddCommand(newActionsListCmd(a), newActionsPermissionsCmd(a))
	return cmd
}

func newActionsListCmd(a *app) *cobra.Command {
	var (
		entityType string
		all        bool
		output     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the actions you may run",
		Long: `Lists registered actions ordered by label. The configured include or exclude
lists apply, and actions the acting account holds no permission for are
hidden unless --all is given.`,
		Example: `  # Actions that apply to nodes
  bulkops actions list --entity-type node

  # Everything registered, as JSON
  bulkops actions list --all --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if err := a.openContent(cmd.Context()); err != nil {
				return err
			}
			filter := a.cfg.ActionFilter()
			filter.EntityType = entityType
			if !all {
				filter.Account = a.account()
			}
			defs := a.registry.List(filter)
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			return renderActions(cmd.OutOrStdout(), defs)
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "only actions applicable to this entity type")
	cmd.Flags().BoolVar(&all, "all", false, "ignore the acting account's permissions")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func renderActions(w io.Writer, defs []action.Definition) error {
	if len(defs) == 0 {
		_, err := fmt.Fprintln(w, "No actions available.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
	fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tCONFIRM\tCHUNK\tPERMISSION\tCAPABILITIES")
	for _, d := range defs {
		typ := d.EntityType
		if typ == "" {
			typ = "*"
		}
		perm := d.RequiredPermission
		if d.HasOwnRequirementCheck {
			perm = "(own check)"
		}
		chunk := "-"
		if d.ChunkSize > 0 {
			chunk = strconv.Itoa(d.ChunkSize)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			d.ID, d.Label, typ, d.Confirm, chunk, perm, d.Capabilities)
	}
	return tw.Flush()
}

func newActionsPermissionsCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the permissions generated for registered actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if err := a.openContent(cmd.Context()); err != nil {
				return err
			}
			perms := a.registry.Permissions()
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), perms)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
			fmt.Fprintln(tw, "PERMISSION\tTITLE")
			for _, p := range perms {
				fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/content"
	"github.com/rshade/bulkops/internal/selection"
)

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage the sample content database",
	}
	cmd.AddCommand(newContentSeedCmd(a), newContentViewsCmd(a), newContentListCmd(a))
	return cmd
}

func newContentSeedCmd(a *app) *cobra.Command {
	opts := content.DefaultSeedOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty content database with sample records",
		Example: `  # Default data set: 25 nodes in English and French
  bulkops content seed

  # A larger monolingual set without comments
  bulkops content seed --nodes 500 --languages en --comments 0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openContent(cmd.Context()); err != nil {
				return err
			}
			n, err := a.content.Seed(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("seeding content: %w", err)
			}
			cmd.Printf("Seeded %d records into %s\n", n, a.cfg.Content.Database)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Nodes, "nodes", opts.Nodes, "number of nodes to create")
	cmd.Flags().StringSliceVar(&opts.Languages, "languages", opts.Languages, "translations to create for each node")
	cmd.Flags().StringSliceVar(&opts.Bundles, "bundles", opts.Bundles, "bundles assigned round robin")
	cmd.Flags().IntVar(&opts.CommentsPerNode, "comments", opts.CommentsPerNode, "comments attached to each node")
	return cmd
}

func newContentViewsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the listings a selection can be made on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openContent(cmd.Context()); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
			fmt.Fprintln(tw, "VIEW\tLABEL\tTYPE\tARGUMENTS\tFILTERS\tRELATIONSHIPS")
			for _, v := range a.content.Views() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					v.ID, v.Label, v.EntityType,
					dash(strings.Join(v.Arguments, ",")),
					dash(strings.Join(v.Exposed, ",")),
					dash(strings.Join(v.Relationships, ",")))
			}
			return tw.Flush()
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// listingFlags are shared by commands that address a listing.
type listingFlags struct {
	display      string
	args         []string
	filters      []string
	relationship string
	pagerOffset  int
}

func (f *listingFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.display, "display", "", "listing display")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "positional listing argument (repeatable)")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "exposed filter as name=value (repeatable)")
	cmd.Flags().StringVar(&f.relationship, "relationship", "", "load records through this relationship")
	cmd.Flags().IntVar(&f.pagerOffset, "pager-offset", 0, "skip this many leading listing rows")
}

func (f *listingFlags) query(view string) (selection.QueryRef, error) {
	exposed, err := parsePairs(f.filters)
	if err != nil {
		return selection.QueryRef{}, fmt.Errorf("--filter: %w", err)
	}
	q := selection.QueryRef{
		View:         view,
		Display:      f.display,
		Arguments:    f.args,
		Relationship: f.relationship,
		PagerOffset:  f.pagerOffset,
	}
	if len(exposed) > 0 {
		q.ExposedInput = exposed
	}
	return q, nil
}

// parsePairs splits name=value arguments.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out[strings.TrimSpace(name)] = value
	}
	return out, nil
}

func newContentListCmd(a *app) *cobra.Command {
	var (
		lf     listingFlags
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list VIEW",
		Short: "Show listing rows with the item keys to submit them by",
		Example: `  # Unpublished articles in French
  bulkops content list articles --filter status=false --filter langcode=fr

  # Comments, keyed by the node they belong to
  bulkops content list comments --relationship parent`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.openContent(cmd.Context()); err != nil {
				return err
			}
			q, err := lf.query(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rows, err := a.content.Execute(ctx, q, q.PagerOffset+offset, limit)
			if err != nil {
				return err
			}
			total, _, err := a.content.CountTotal(ctx, q)
			if err != nil {
				return err
			}
			withRevision, err := a.content.ListsRevisions(ctx, q)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
			fmt.Fprintln(tw, "KEY\tITEM\tTITLE\tBUNDLE\tSTATUS\tOWNER")
			for _, row := range rows {
				rec, loadErr := a.content.LoadFromRow(ctx, row, q.Relationship)
				if loadErr != nil {
					fmt.Fprintf(tw, "-\t(unresolved)\t%s\t\t\t\n", row.String(content.ColTitle))
					continue
				}
				ref := selection.RefFromRecord(rec, withRevision)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					selection.EncodeKey(ref), ref, row.String(content.ColTitle),
					row.String(content.ColBundle), row.String(content.ColStatus), row.String(content.ColOwner))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			cmd.Printf("Showing %d of %d rows\n", len(rows), max(total-q.PagerOffset, 0))
			return nil
		},
	}
	lf.add(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show, 0 for all") //nolint:mnd // Default page.
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip after the pager offset")
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/engine/tally"
)

// ErrConfirmationRequired is returned when an action needs confirmation and
// no terminal is available to ask for it.
var ErrConfirmationRequired = errors.New("action requires confirmation, pass --yes to proceed")

// ErrNotConfirmed is returned when the operator declines the prompt.
var ErrNotConfirmed = errors.New("submission cancelled")

type submitOptions struct {
	actionID    string
	keys        []string
	selectAll   bool
	view        string
	listing     listingFlags
	set         []string
	chunkSize   int
	captureList bool
	yes         bool
	run         bool
	immediate   bool
}

func newSubmitCmd(a *app) *cobra.Command {
	var opts submitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an action over a selection",
		Long: `Submits one action over either explicit item keys (see "bulkops content list")
or every result of a listing (--select-all --view). The batch is persisted and
can be advanced with "bulkops step" or "bulkops run", or started right away
with --run. --immediate processes the whole selection in one pass without
persisting anything.`,
		Example: `  # Unpublish every article, ten per step, and run to completion
  bulkops submit --action unpublish --select-all --view articles --chunk-size 10 --run

  # Publish nodes owned by "editor" that are unpublished
  bulkops submit --action publish --select-all --view content --arg editor --filter status=false

  # Append a suffix to the titles of two hand-picked records right away
  bulkops submit --action retitle --set suffix=" (archived)" --key <key> --key <key> --immediate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, a, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.actionID, "action", "", "id of the action to run")
	f.StringArrayVar(&opts.keys, "key", nil, "encoded item key (repeatable)")
	f.BoolVar(&opts.selectAll, "select-all", false, "act on every result of --view")
	f.StringVar(&opts.view, "view", "", "listing to select from")
	opts.listing.add(cmd)
	f.StringArrayVar(&opts.set, "set", nil, "action configuration as key=value (repeatable)")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "items per step, overriding configuration")
	f.BoolVar(&opts.captureList, "capture-list", true, "freeze the item list before processing")
	f.BoolVarP(&opts.yes, "yes", "y", false, "skip the confirmation prompt")
	f.BoolVar(&opts.run, "run", false, "run the batch to completion after submitting")
	f.BoolVar(&opts.immediate, "immediate", false, "process everything in one pass without persisting the batch")
	cmd.MarkFlagsMutuallyExclusive("run", "immediate")
	return cmd
}

func runSubmit(cmd *cobra.Command, a *app, opts *submitOptions) error {
	ctx := cmd.Context()
	sub, err := opts.submission(cmd, a)
	if err != nil {
		return err
	}
	if err := a.openContent(ctx); err != nil {
		return err
	}
	if err := confirmAction(cmd, a.registry, a.cfg.ActionFilter(), sub.ActionID, opts.yes); err != nil {
		return err
	}

	if opts.immediate {
		res, err := a.processor.ExecuteImmediate(ctx, sub)
		if err != nil {
			return err
		}
		cmd.Println(res.Message)
		printSummary(cmd, res.Summary)
		return nil
	}

	if err := a.openScheduler(ctx); err != nil {
		return err
	}
	rec, err := a.sched.Submit(ctx, sub)
	if err != nil {
		return err
	}
	logger.Info().
		Ctx(ctx).
		Str("batch_id", rec.ID).
		Str("action", sub.ActionID).
		Int("chunk_size", rec.Request.ChunkSize).
		Msg("batch submitted")
	cmd.Printf("Submitted batch %s\n", rec.ID)
	if !opts.run {
		cmd.Printf("Advance it with: bulkops run %s\n", rec.ID)
		return nil
	}
	return runToCompletion(cmd, a, rec.ID)
}

func (o *submitOptions) submission(cmd *cobra.Command, a *app) (engine.Submission, error) {
	configuration, err := parseConfiguration(o.set)
	if err != nil {
		return engine.Submission{}, err
	}
	sub := engine.Submission{
		ActionID:      o.actionID,
		Configuration: configuration,
		Keys:          o.keys,
		SelectAll:     o.selectAll,
		ChunkSize:     o.chunkSize,
		Account:       a.account(),
	}
	if cmd.Flags().Changed("capture-list") {
		capture := o.captureList
		sub.CaptureList = &capture
	}
	if o.view != "" {
		q, err := o.listing.query(o.view)
		if err != nil {
			return engine.Submission{}, err
		}
		sub.Query = &q
	} else if o.selectAll {
		return engine.Submission{}, errors.New("--select-all requires --view")
	}
	return sub, nil
}

// parseConfiguration turns key=value pairs into action configuration. The
// literal values true and false become booleans.
func parseConfiguration(pairs []string) (action.Configuration, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	raw, err := parsePairs(pairs)
	if err != nil {
		return nil, fmt.Errorf("--set: %w", err)
	}
	cfg := make(action.Configuration, len(raw))
	for k, v := range raw {
		switch strings.ToLower(v) {
		case "true":
			cfg[k] = true
		case "false":
			cfg[k] = false
		default:
			cfg[k] = v
		}
	}
	return cfg, nil
}

// confirmAction asks before running actions flagged for confirmation.
// Unknown and unoffered actions are left for submission validation to report.
func confirmAction(cmd *cobra.Command, reg *action.Registry, offered action.Filter, id string, yes bool) error {
	def, err := reg.Get(id)
	if err != nil || !def.Confirm || yes || !offered.Offers(id) {
		return nil
	}
	if !stdinIsTerminal(cmd) {
		return fmt.Errorf("%s: %w", def.Label, ErrConfirmationRequired)
	}
	res := Confirm(cmd.OutOrStdout(), cmd.InOrStdin(), fmt.Sprintf("Run %q on the selected items?", def.Label))
	if !res.Accepted {
		return ErrNotConfirmed
	}
	return nil
}

func printSummary(cmd *cobra.Command, s tally.Summary) {
	for _, lc := range s.Counts {
		cmd.Printf("  %s: %d\n", lc.Label, lc.Count)
	}
}

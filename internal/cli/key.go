package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/selection"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Encode and decode item keys",
		Long: `Item keys are the form-safe encoding of [langcode, entity type, id, revision?]
used to submit explicit selections.`,
	}
	cmd.AddCommand(newKeyEncodeCmd(), newKeyDecodeCmd())
	return cmd
}

func newKeyEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "encode LANGCODE ENTITY_TYPE ID [REVISION]",
		Short:   "Encode an item reference as a key",
		Example: `  bulkops key encode en node 12`,
		Args:    cobra.RangeArgs(3, 4), //nolint:mnd // Tuple arity.
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := selection.NewItemRef(args[0], args[1], args[2])
			if len(args) == 4 { //nolint:mnd // Tuple arity.
				rev, err := strconv.ParseInt(args[3], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid revision %q: %w", args[3], err)
				}
				ref = ref.WithRevision(rev)
			}
			cmd.Println(selection.EncodeKey(ref))
			return nil
		},
	}
}

func newKeyDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode KEY...",
		Short: "Decode keys back into item references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, bad := selection.DecodeKeys(args)
			for _, ref := range refs {
				cmd.Println(ref.String())
			}
			for _, k := range bad {
				cmd.PrintErrf("invalid key: %s\n", k)
			}
			if len(bad) > 0 {
				return errors.New("some keys could not be decoded")
			}
			return nil
		},
	}
}

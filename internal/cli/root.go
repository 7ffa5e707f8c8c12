package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/pkg/version"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the bulkops CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for
// testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	a := &app{lookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:           "bulkops",
		Short:         "Apply actions to large selections of content in bounded batches",
		Long:          "bulkops: select records from a listing, apply one action to all of them chunk by chunk, and track progress and results.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	if commit := version.GetGitCommit(); commit != "" {
		cmd.SetVersionTemplate(fmt.Sprintf("bulkops {{.Version}} (commit %s)\n", commit))
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (default ~/.bulkops/config.yaml)")
	flags.Bool("debug", false, "enable debug logging to stderr")
	flags.StringVar(&a.user, "user", "", "act as this account instead of the administrator")
	flags.StringVar(&a.permissions, "permissions", "", "comma-separated permissions of --user")

	cmd.AddCommand(
		newActionsCmd(a),
		newKeyCmd(),
		newContentCmd(a),
		newSubmitCmd(a),
		newStepCmd(a),
		newRunCmd(a),
		newStatusCmd(a),
		newBatchesCmd(a),
		newAbandonCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

const rootCmdExample = `  # Create a sample content database
  bulkops content seed

  # Show the actions available to you
  bulkops actions list

  # Unpublish every article, ten at a time, and follow progress
  bulkops submit --action unpublish --select-all --view articles --chunk-size 10 --run

  # Retitle two hand-picked records
  bulkops submit --action retitle --set title="Archived" --key <key> --key <key>

  # Resume a batch one step at a time
  bulkops step 01J9Z3V3K2M0000000000000AB

  # List persisted batches, newest first
  bulkops batches list --sort updated:desc`

// newConfigCmd creates the config command group.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(newConfigInitCmd(a), newConfigValidateCmd(a))
	return cmd
}

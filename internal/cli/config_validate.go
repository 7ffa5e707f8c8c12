package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/content"
	"github.com/rshade/bulkops/internal/store"
)

// newConfigValidateCmd creates the config validate command for validating configuration.
func newConfigValidateCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the loaded configuration, including environment overrides.

This includes:
- Chunk size bounds and the per-action chunk size overrides
- The state backend and its TTL
- Logging format
- Action ids named under actions (unknown ids are reported as warnings)`,
		Example: `  # Validate current configuration
  bulkops config validate

  # Validate and show detailed information
  bulkops config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, a.cfg, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, cfg *config.Config, verbose bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	known := slices.Sorted(maps.Keys(content.Definitions()))
	if unknown := cfg.UnknownActions(known); len(unknown) > 0 {
		cmd.Println("Action configuration warnings:")
		for _, id := range unknown {
			cmd.Printf("  - unknown action %q\n", id)
		}
		cmd.Println()
	}
	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  Chunk size: %d (max %d)\n", cfg.Batch.ChunkSize, cfg.Batch.MaxChunkSize)
	cmd.Printf("  Capture list: %t\n", cfg.Batch.CaptureList)
	cmd.Printf("  Retries: %d every %s\n", cfg.Batch.MaxRetries, cfg.Batch.RetryDelay)
	cmd.Printf("  Content database: %s\n", cfg.Content.Database)

	switch cfg.State.Backend {
	case store.BackendBlob:
		cmd.Printf("  State: blob %s (prefix %q)\n", cfg.State.BucketURL, cfg.State.Prefix)
	default:
		cmd.Printf("  State: %s %s\n", cfg.State.Backend, cfg.State.Dir)
	}
	cmd.Printf("  State TTL: %ds, compressed: %t\n", cfg.State.TTLSeconds, cfg.State.Compress)

	if len(cfg.Actions.ChunkSize) == 0 {
		cmd.Println("  No per-action chunk sizes")
		return
	}
	cmd.Printf("  Per-action chunk sizes: %d\n", len(cfg.Actions.ChunkSize))
	for _, id := range slices.Sorted(maps.Keys(cfg.Actions.ChunkSize)) {
		cmd.Printf("    - %s: %d\n", id, cfg.Actions.ChunkSize[id])
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfields/crawlbench/internal/campaign"
)

// newRunCmd creates the 'run' subcommand, which executes the full
// benchmark campaign against the configured target URL.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark campaign",
		Long: `Executes every benchmark configuration in sequence against the
configured target URL, resetting crawl storage between runs and saving
each completed result immediately.`,
		RunE: runCampaignCommand,
	}
}

func runCampaignCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	if err := campaign.New(cfg, logger).Run(cmd.Context()); err != nil {
		return fmt.Errorf("run campaign: %w", err)
	}
	return nil
}

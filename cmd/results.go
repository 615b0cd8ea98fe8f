package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfields/crawlbench/internal/results"
)

// newResultsCmd creates the 'results' subcommand, which lists every run
// recorded in the results database.
func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "List recorded benchmark runs",
		RunE:  runResultsCommand,
	}
}

func runResultsCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	store, err := results.Open(cfg.ResultsDB)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer store.Close()

	runs, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tLABEL\tBACKEND\tDURATION\tPAGES\tPAGES/S\tURLS\tNOTES")
	for _, run := range runs {
		started := time.Unix(run.StartTS, 0).Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2fs\t%d\t%.2f\t%d\t%s\n",
			started, run.Label, run.Backend, run.DurationS,
			run.PagesWritten, run.PagesPerSec, run.URLsTotal, run.Notes)
	}
	return tw.Flush()
}

// Package cmd defines and implements the CLI commands for the crawlbench
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/config"
	"github.com/mfields/crawlbench/internal/logging"
)

var (
	cfgFile     string
	development bool
)

// loadConfig reads the harness configuration and builds its logger. Every
// subcommand goes through here so flags behave identically across them.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(development || cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlbench",
		Short: "Benchmark harness for the external web crawler.",
		Long: `crawlbench drives the external web crawler through a fixed set of
configurations (storage backend, HTTP transport, JS rendering), measures
throughput and correctness for each run, and records comparable results
in a local SQLite database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	cmd.PersistentFlags().BoolVar(&development, "dev", false, "enable development logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newResultsCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

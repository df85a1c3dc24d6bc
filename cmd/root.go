// Package cmd defines the CLI commands for the newscrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/config"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/logging"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/metrics"
)

var cfgFile string

// newRootCmd creates the root command. Config loading and logger setup happen
// in PersistentPreRunE so every subcommand sees an initialized environment.
func newRootCmd() *cobra.Command {
	var (
		cfg    config.Config
		logger *zap.Logger
	)

	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "Country news crawl and ingest service.",
		Long: `newscrawler discovers news categories, story clusters, and articles for
each configured country and keeps the document store current. The worker
subcommand consumes crawl tasks from the queue; the orchestrate subcommand
dispatches eligible countries onto it on a fixed schedule.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newWorkerCmd(&cfg, &logger))
	cmd.AddCommand(newOrchestrateCmd(&cfg, &logger))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "newscrawler: %v\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/clock/system"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/config"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/orchestrator"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/queue"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/server"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/storage/postgres"
)

func newOrchestrateCmd(cfg *config.Config, logger **zap.Logger) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Dispatches eligible countries onto the crawl queue",
		Long: `Runs the dispatch loop: on every tick, reads each configured country's
processing state and enqueues a crawl task for every country not currently
running. With --once, runs a single dispatch pass and exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrchestrate(cmd.Context(), *cfg, *logger, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run one dispatch pass and exit")
	return cmd
}

func runOrchestrate(parent context.Context, cfg config.Config, logger *zap.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DB.DSN, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	clock := system.New()
	states := postgres.NewStatusStore(pool, clock, logger.Named("status"))

	taskQueue, err := queue.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, cfg.PubSub.SubscriptionID, logger.Named("queue"))
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer func() {
		if cerr := taskQueue.Close(); cerr != nil {
			logger.Warn("failed to close queue", zap.Error(cerr))
		}
	}()

	orch := orchestrator.New(cfg.Scraper.Countries, states, taskQueue, logger.Named("orchestrator"))
	if once {
		orch.Tick(ctx)
		return nil
	}

	ops := server.New(cfg.Server.Port, states, logger.Named("server"))
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return orch.Run(groupCtx, cfg.TickInterval()) })
	group.Go(func() error { return ops.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("orchestrator shut down")
	return nil
}

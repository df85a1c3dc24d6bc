package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/archive"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/clock/system"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/config"
	collyfetcher "github.com/PureNewsCanada/NewsArticleProcessingApp/internal/fetcher/colly"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/fetcher/headless"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/queue"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/scrape"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/server"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/storage/gcs"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/storage/postgres"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/worker"
)

func newWorkerCmd(cfg *config.Config, logger **zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consumes crawl tasks from the queue and scrapes them",
		Long: `Runs the crawl worker: pulls one country task at a time from the queue,
executes the scrape pipeline against the proxied news site, and records
topics and articles in the document store. Also serves the ops HTTP
endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), *cfg, *logger)
		},
	}
}

func runWorker(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DB.DSN, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	clock := system.New()
	states := postgres.NewStatusStore(pool, clock, logger.Named("status"))
	records := postgres.NewRecordStore(pool, cfg.DB.TopicTable, cfg.DB.ArticleTable, logger.Named("records"))

	taskQueue, err := queue.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, cfg.PubSub.SubscriptionID, logger.Named("queue"))
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer func() {
		if cerr := taskQueue.Close(); cerr != nil {
			logger.Warn("failed to close queue", zap.Error(cerr))
		}
	}()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("fetcher"))

	renderer, closeRenderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	journal, err := buildJournal(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close(context.Background())
	}

	scraper := scrape.New(
		scrape.Config{
			BaseURL:          cfg.Scraper.BaseURL,
			ProxyUsername:    cfg.Proxy.Username,
			ProxyPassword:    cfg.Proxy.Password,
			StoryConcurrency: cfg.Scraper.StoryConcurrency,
		},
		fetcher,
		renderer,
		records,
		clock,
		logger.Named("scrape"),
	)

	var workerJournal worker.Journal
	if journal != nil {
		workerJournal = journal
	}
	w := worker.New(taskQueue, states, scraper, workerJournal, logger.Named("worker"))
	ops := server.New(cfg.Server.Port, states, logger.Named("server"))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(groupCtx) })
	group.Go(func() error { return ops.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker shut down")
	return nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (news.Renderer, func(), error) {
	if !cfg.Headless.Enabled {
		return nil, func() {}, nil
	}
	renderer, err := headless.NewChromedp(headless.Config{
		UserAgent:         cfg.Scraper.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Warn("headless renderer init failed, continuing without it", zap.Error(err))
		return nil, func() {}, nil
	}
	return renderer, renderer.Close, nil
}

func buildJournal(ctx context.Context, cfg config.Config, clock news.Clock, logger *zap.Logger) (*archive.Journal, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	blobs, err := gcs.New(ctx, cfg.Archive.Bucket, logger.Named("gcs"))
	if err != nil {
		return nil, fmt.Errorf("connect archive bucket: %w", err)
	}
	flushEvery := time.Duration(cfg.Archive.FlushSeconds) * time.Second
	return archive.New(ctx, blobs, clock, flushEvery, logger.Named("journal")), nil
}
